package bot

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Kind is the semantic kind of one inbound message.
type Kind int

const (
	KindEcho Kind = iota
	KindQuickReply
	KindGeoLocation
	KindText
	KindWelcome
	KindPostback
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindEcho:
		return "echo"
	case KindQuickReply:
		return "quickReply"
	case KindGeoLocation:
		return "geoLocation"
	case KindText:
		return "text"
	case KindWelcome:
		return "welcome"
	case KindPostback:
		return "postback"
	case KindFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Coordinates is a geolocation attachment payload.
type Coordinates struct {
	Lat  float64
	Long float64
}

// Classification is the result of classifying one inbound message: exactly
// one kind plus the extracted active value.
type Classification struct {
	Kind        Kind
	Text        string
	Coordinates *Coordinates
}

// Classify derives the kind of a raw inbound message. The predicate order
// is a correctness requirement: fields can co-occur in malformed payloads,
// and the first matching predicate wins. A message carrying both a
// quick-reply payload and text is a quick reply, never text.
func Classify(raw json.RawMessage, startPhrase string) Classification {
	msg := gjson.ParseBytes(raw)

	if msg.Get("message.is_echo").Bool() {
		return Classification{Kind: KindEcho}
	}

	if payload := msg.Get("message.quick_reply.payload"); payload.Exists() && payload.String() != "" {
		return Classification{Kind: KindQuickReply, Text: payload.String()}
	}

	if coords := msg.Get("message.attachments.0.payload.coordinates"); coords.Exists() {
		return Classification{
			Kind: KindGeoLocation,
			Coordinates: &Coordinates{
				Lat:  coords.Get("lat").Float(),
				Long: coords.Get("long").Float(),
			},
		}
	}

	if text := msg.Get("message.text"); text.Exists() && text.String() != "" {
		if text.String() == startPhrase {
			return Classification{Kind: KindWelcome, Text: text.String()}
		}
		return Classification{Kind: KindText, Text: text.String()}
	}

	if payload := msg.Get("postback.payload"); payload.Exists() {
		if payload.String() == startPhrase {
			return Classification{Kind: KindWelcome, Text: payload.String()}
		}
		return Classification{Kind: KindPostback, Text: payload.String()}
	}

	return Classification{Kind: KindFallback}
}
