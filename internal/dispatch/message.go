package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the logical payload type of a message. The values are
// the wire "type" strings in broker command envelopes.
type Kind string

const (
	KindText           Kind = "text"
	KindPixelArt       Kind = "pixel_art"
	KindGIF            Kind = "gif"
	KindPixelAnimation Kind = "pixel_animation"
)

// Metadata is the tagged union of per-kind message metadata. Each kind
// carries only the fields valid for it; constructors validate required
// fields so a Message can never exist with cross-kind or missing metadata.
type Metadata interface {
	kind() Kind
	validate() error
}

// PixelArtMeta describes a static pixel-art frame.
type PixelArtMeta struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Palette []string `json:"palette,omitempty"`
}

func (m PixelArtMeta) kind() Kind { return KindPixelArt }

func (m PixelArtMeta) validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: pixel art requires positive width and height", ErrMalformedMessage)
	}
	return nil
}

// AnimationMeta describes a multi-frame pixel animation.
type AnimationMeta struct {
	Width        int  `json:"width"`
	Height       int  `json:"height"`
	FrameCount   int  `json:"frameCount"`
	FrameDelayMS int  `json:"frameDelay,omitempty"`
	Loop         bool `json:"loop,omitempty"`
}

func (m AnimationMeta) kind() Kind { return KindPixelAnimation }

func (m AnimationMeta) validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: animation requires positive width and height", ErrMalformedMessage)
	}
	if m.FrameCount <= 0 {
		return fmt.Errorf("%w: animation requires at least one frame", ErrMalformedMessage)
	}
	return nil
}

// GIFMeta describes an already-encoded GIF. Dimensions are optional; the
// device scales to its panel when they are absent.
type GIFMeta struct {
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	DurationMS int    `json:"duration,omitempty"`
	Title      string `json:"title,omitempty"`
}

func (m GIFMeta) kind() Kind { return KindGIF }

func (m GIFMeta) validate() error {
	if (m.Width < 0) || (m.Height < 0) {
		return fmt.Errorf("%w: gif dimensions cannot be negative", ErrMalformedMessage)
	}
	return nil
}

// Message is the normalized form every delivery channel consumes. It is
// transient: created per send call, never persisted beyond the in-memory
// retry queue.
type Message struct {
	Kind      Kind
	Content   string
	Metadata  Metadata // nil for plain text
	Timestamp int64    // Epoch milliseconds
	MessageID string
}

// newMessage stamps identity and time onto a validated payload.
func newMessage(kind Kind, content string, meta Metadata) Message {
	return Message{
		Kind:      kind,
		Content:   content,
		Metadata:  meta,
		Timestamp: time.Now().UnixMilli(),
		MessageID: uuid.NewString(),
	}
}

// NewText builds a plain text message.
//
// Returns ErrMalformedMessage for empty content.
func NewText(content string) (Message, error) {
	if content == "" {
		return Message{}, fmt.Errorf("%w: empty text content", ErrMalformedMessage)
	}
	return newMessage(KindText, content, nil), nil
}

// NewPixelArt builds a pixel-art message. Content carries the encoded
// frame data produced upstream.
func NewPixelArt(content string, meta PixelArtMeta) (Message, error) {
	if content == "" {
		return Message{}, fmt.Errorf("%w: empty pixel art content", ErrMalformedMessage)
	}
	if err := meta.validate(); err != nil {
		return Message{}, err
	}
	return newMessage(KindPixelArt, content, meta), nil
}

// NewPixelAnimation builds a pixel-animation message.
func NewPixelAnimation(content string, meta AnimationMeta) (Message, error) {
	if content == "" {
		return Message{}, fmt.Errorf("%w: empty animation content", ErrMalformedMessage)
	}
	if err := meta.validate(); err != nil {
		return Message{}, err
	}
	return newMessage(KindPixelAnimation, content, meta), nil
}

// NewGIF builds a GIF message. Content is the encoded GIF or a URL to
// one, as produced upstream.
func NewGIF(content string, meta GIFMeta) (Message, error) {
	if content == "" {
		return Message{}, fmt.Errorf("%w: empty gif content", ErrMalformedMessage)
	}
	if err := meta.validate(); err != nil {
		return Message{}, err
	}
	return newMessage(KindGIF, content, meta), nil
}

// wireEnvelope is the broker command payload.
type wireEnvelope struct {
	Type      string   `json:"type"`
	Content   string   `json:"content"`
	Metadata  Metadata `json:"metadata,omitempty"`
	Timestamp int64    `json:"timestamp"`
	MessageID string   `json:"messageId"`
}

// WireJSON encodes the message as a broker command envelope.
func (m Message) WireJSON() ([]byte, error) {
	data, err := json.Marshal(wireEnvelope{
		Type:      string(m.Kind),
		Content:   m.Content,
		Metadata:  m.Metadata,
		Timestamp: m.Timestamp,
		MessageID: m.MessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding wire envelope: %w", err)
	}
	return data, nil
}

// rpcMethod maps a message kind to its command channel method.
func (m Message) rpcMethod() string {
	switch m.Kind {
	case KindText:
		return "send-text"
	case KindPixelArt:
		return "send-pixel-art"
	case KindPixelAnimation:
		return "send-pixel-animation"
	case KindGIF:
		return "send-gif"
	default:
		return ""
	}
}
