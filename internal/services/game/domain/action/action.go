// Package action defines the normalized player action consumed by combat and
// group encounters.
package action

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies the media kind of an inbound action.
type Kind int

const (
	KindUnspecified Kind = iota
	KindText
	KindSticker
	KindPhoto
	KindGIF
	KindAudio
	KindVideo
	KindVoice
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindSticker:
		return "sticker"
	case KindPhoto:
		return "photo"
	case KindGIF:
		return "gif"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindVoice:
		return "voice"
	case KindLink:
		return "link"
	default:
		return "unspecified"
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k := KindText; k <= KindLink; k++ {
		if k.String() == strings.ToLower(strings.TrimSpace(name)) {
			return k, true
		}
	}
	return KindUnspecified, false
}

// Coefficient scales base damage by media kind.
func (k Kind) Coefficient() float64 {
	switch k {
	case KindText:
		return 1.0
	case KindSticker:
		return 0.9
	case KindPhoto:
		return 1.2
	case KindGIF:
		return 1.5
	case KindAudio:
		return 2.0
	case KindVideo:
		return 1.8
	case KindVoice:
		return 2.5
	case KindLink:
		return 1.3
	default:
		return 1.0
	}
}

// EnergyCost is the energy spent by one solo action of this kind.
func (k Kind) EnergyCost() int {
	switch k {
	case KindPhoto, KindGIF, KindLink:
		return 2
	case KindAudio, KindVideo, KindVoice:
		return 3
	default:
		return 1
	}
}

// TextLike reports whether size gates and length scaling apply to the kind.
func (k Kind) TextLike() bool {
	return k == KindText || k == KindLink
}

// Length scaling caps at this many characters.
const (
	LengthCap      = 200
	LengthMaxBonus = 0.5
)

// SizeFactor returns the length multiplier for text-like kinds: up to +50%
// at LengthCap characters. Other kinds always scale by 1.
func (k Kind) SizeFactor(length int) float64 {
	if !k.TextLike() {
		return 1.0
	}
	if length < 0 {
		length = 0
	}
	if length > LengthCap {
		length = LengthCap
	}
	return 1.0 + float64(length)/LengthCap*LengthMaxBonus
}

// Action is one normalized inbound player event.
type Action struct {
	ActorID string
	// RoomID is empty for solo actions.
	RoomID string
	Kind   Kind
	// TextLength is the character count of the message body.
	TextLength int
	// Text is the message body when the source provides it; group encounters
	// use it for duplicate and distinct-content checks.
	Text    string
	IsReply bool
	// Duration is the clip length for voice/audio/video actions.
	Duration time.Duration
	At       time.Time
}

// Length returns TextLength, falling back to the rune count of Text.
func (a Action) Length() int {
	if a.TextLength > 0 {
		return a.TextLength
	}
	return utf8.RuneCountInString(a.Text)
}

// NormalizedText returns the NFC-normalized, trimmed, lower-cased text.
func (a Action) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(a.Text)))
}

// DistinctRunes counts unique non-space runes of the normalized text.
func (a Action) DistinctRunes() int {
	seen := map[rune]struct{}{}
	for _, r := range a.NormalizedText() {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		seen[r] = struct{}{}
	}
	return len(seen)
}

// ContainsAny reports whether the text contains any of the given symbols.
func (a Action) ContainsAny(symbols []string) bool {
	text := norm.NFC.String(a.Text)
	for _, s := range symbols {
		if s != "" && strings.Contains(text, norm.NFC.String(s)) {
			return true
		}
	}
	return false
}
