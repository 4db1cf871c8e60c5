package types

// Message roles. Order of messages is conversation turn order and is
// semantically meaningful; the model API receives turns strictly in sequence.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// File kind classifications stored on the files row. The kind decides which
// instruction text seeds a conversation and how an upload is processed.
const (
	KindPDF     = "pdf"
	KindText    = "text"
	KindImage   = "image"
	KindYouTube = "youtube"
)

// Message is a single role-tagged turn in a chat. The full ordered sequence
// is persisted as one JSON column on the chat row.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the conversation roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleModel
}

// ValidKind reports whether kind is a known file classification.
func ValidKind(kind string) bool {
	switch kind {
	case KindPDF, KindText, KindImage, KindYouTube:
		return true
	}
	return false
}
