package message

/*
Part is one typed piece of structured content. Only the field matching Type
is expected to be populated.
*/
type Part struct {
	Type PartType `json:"type"`

	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// PartType is the discriminator for a Part.
type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image"
)

func NewTextPart(text string) Part {
	return Part{
		Type: PartTypeText,
		Text: text,
	}
}

func NewImagePart(url, mimeType string) Part {
	return Part{
		Type:     PartTypeImage,
		ImageURL: url,
		MimeType: mimeType,
	}
}
