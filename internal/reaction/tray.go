package reaction

import "sync"

// Tray хранит id поста с раскрытым выбором реакций. Открыт максимум один.
type Tray struct {
	mu         sync.Mutex
	openPostID string
}

func (t *Tray) OpenPostID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openPostID
}

func (t *Tray) IsOpen(postID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return postID != "" && t.openPostID == postID
}

// Open раскрывает трей поста, закрывая любой другой.
func (t *Tray) Open(postID string) {
	t.mu.Lock()
	t.openPostID = postID
	t.mu.Unlock()
}

// Toggle открывает трей поста или закрывает его, если он уже открыт.
func (t *Tray) Toggle(postID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openPostID == postID {
		t.openPostID = ""
		return false
	}
	t.openPostID = postID
	return true
}

func (t *Tray) Close() {
	t.mu.Lock()
	t.openPostID = ""
	t.mu.Unlock()
}

// CloseIf закрывает трей, только если открыт именно этот пост.
func (t *Tray) CloseIf(postID string) {
	t.mu.Lock()
	if t.openPostID == postID {
		t.openPostID = ""
	}
	t.mu.Unlock()
}
