package models

// PartKind identifies the kind of a prompt part
type PartKind string

const (
	PartSystem PartKind = "system"
	PartText   PartKind = "text"
	PartImage  PartKind = "image"
)

// Image is raw image data ready to hand to a provider
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Part is one ordered element of a prompt
type Part struct {
	Kind  PartKind
	Text  string
	Image *Image
}

// SystemPart builds a system instruction part
func SystemPart(text string) Part {
	return Part{Kind: PartSystem, Text: text}
}

// TextPart builds a user text part
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart builds an image part
func ImagePart(img *Image) Part {
	return Part{Kind: PartImage, Image: img}
}

// Role of a conversation turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single message in a session's conversation history
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// GenerateRequest carries everything a generator needs for one call.
// History is read-only; callers append the new exchange after success.
type GenerateRequest struct {
	Parts       []Part
	History     []Turn
	Temperature *float32
	Vision      bool // use the vision model when the provider distinguishes one
}

// Generation is the provider's answer. Blocked is a soft outcome, not an error.
type Generation struct {
	Text        string `json:"text"`
	Blocked     bool   `json:"blocked"`
	BlockReason string `json:"block_reason,omitempty"`
	Model       string `json:"model,omitempty"`
}
