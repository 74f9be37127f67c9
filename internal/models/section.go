package models

import (
	"encoding/json"
	"fmt"
)

type SectionType string

const (
	SectionTextOnly   SectionType = "TEXT_ONLY"
	SectionTextImage  SectionType = "TEXT_IMAGE"
	SectionTextVideo  SectionType = "TEXT_VIDEO"
	SectionTextTrade  SectionType = "TEXT_TRADE"
	SectionPoll       SectionType = "POLL"
	SectionNFTListing SectionType = "NFT_LISTING"
)

// Section - блок содержимого поста. Порядок секций в посте - порядок отображения.
type Section struct {
	ID   string      `json:"id,omitempty"`
	Body SectionBody `json:"-" validate:"required"`
}

// SectionBody реализуется только типами этого пакета.
type SectionBody interface {
	Type() SectionType
	isSectionBody()
}

type TextOnly struct {
	Text string `json:"text"`
}

type TextImage struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"imageRef"`
}

type TextVideo struct {
	Text     string `json:"text,omitempty"`
	VideoRef string `json:"videoRef"`
}

type TradeData struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	TxHash string  `json:"txHash,omitempty"`
}

type TextTrade struct {
	Text  string    `json:"text,omitempty"`
	Trade TradeData `json:"tradeData"`
}

type PollOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Votes int    `json:"votes"`
}

type PollData struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
}

type Poll struct {
	Poll PollData `json:"pollData"`
}

type ListingData struct {
	Collection string  `json:"collection"`
	TokenID    string  `json:"tokenId"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
}

type NFTListing struct {
	Listing ListingData `json:"listingData"`
}

func (TextOnly) Type() SectionType   { return SectionTextOnly }
func (TextImage) Type() SectionType  { return SectionTextImage }
func (TextVideo) Type() SectionType  { return SectionTextVideo }
func (TextTrade) Type() SectionType  { return SectionTextTrade }
func (Poll) Type() SectionType       { return SectionPoll }
func (NFTListing) Type() SectionType { return SectionNFTListing }

func (TextOnly) isSectionBody()   {}
func (TextImage) isSectionBody()  {}
func (TextVideo) isSectionBody()  {}
func (TextTrade) isSectionBody()  {}
func (Poll) isSectionBody()       {}
func (NFTListing) isSectionBody() {}

func (s Section) Type() SectionType {
	if s.Body == nil {
		return ""
	}
	return s.Body.Type()
}

// Text возвращает текст секции и признак того, что секция вообще несет текст.
func (s Section) Text() (string, bool) {
	switch b := s.Body.(type) {
	case TextOnly:
		return b.Text, true
	case TextImage:
		return b.Text, true
	case TextVideo:
		return b.Text, true
	case TextTrade:
		return b.Text, true
	default:
		return "", false
	}
}

// WithText возвращает копию секции с замененным текстом. Нетекстовые данные
// (изображение, видео, сделка) не меняются; секции без текста возвращаются как есть.
func (s Section) WithText(text string) Section {
	switch b := s.Body.(type) {
	case TextOnly:
		b.Text = text
		s.Body = b
	case TextImage:
		b.Text = text
		s.Body = b
	case TextVideo:
		b.Text = text
		s.Body = b
	case TextTrade:
		b.Text = text
		s.Body = b
	}
	return s
}

func NewTextSection(id, text string) Section {
	return Section{ID: id, Body: TextOnly{Text: text}}
}

type sectionEnvelope struct {
	ID   string          `json:"id,omitempty"`
	Type SectionType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s Section) MarshalJSON() ([]byte, error) {
	if s.Body == nil {
		return nil, fmt.Errorf("section %q: empty body", s.ID)
	}
	data, err := json.Marshal(s.Body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sectionEnvelope{ID: s.ID, Type: s.Body.Type(), Data: data})
}

func (s *Section) UnmarshalJSON(raw []byte) error {
	var env sectionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}

	var body SectionBody
	var err error
	switch env.Type {
	case SectionTextOnly:
		body, err = decodeBody[TextOnly](env.Data)
	case SectionTextImage:
		body, err = decodeBody[TextImage](env.Data)
	case SectionTextVideo:
		body, err = decodeBody[TextVideo](env.Data)
	case SectionTextTrade:
		body, err = decodeBody[TextTrade](env.Data)
	case SectionPoll:
		body, err = decodeBody[Poll](env.Data)
	case SectionNFTListing:
		body, err = decodeBody[NFTListing](env.Data)
	default:
		return fmt.Errorf("%w: unknown section type %q", ErrValidation, env.Type)
	}
	if err != nil {
		return fmt.Errorf("section %q: %w", env.ID, err)
	}

	s.ID = env.ID
	s.Body = body
	return nil
}

func decodeBody[T SectionBody](data json.RawMessage) (SectionBody, error) {
	var body T
	if len(data) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}
