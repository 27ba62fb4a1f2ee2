package stowgate

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

const (
	// MetadataPrefix marks request headers that are stored as object metadata.
	MetadataPrefix = "x-store-"

	HeaderVisibility = "x-store-visibility"
	HeaderType       = "x-store-type"
)

// Visibility controls whether an object is served without authentication.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityPrivate:
		return v, nil
	}
	return "", fmt.Errorf("invalid visibility %q (valid values: public, private): %w", s, ErrInvalidInput)
}

// ObjectType tells readers how to interpret the content.
type ObjectType string

const (
	ObjectTypeFile ObjectType = "file"
	ObjectTypeText ObjectType = "text"
)

func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case ObjectTypeFile, ObjectTypeText:
		return t, nil
	}
	return "", fmt.Errorf("invalid object type %q (valid values: file, text): %w", s, ErrInvalidInput)
}

// Metadata is the typed view of an object's x-store-* metadata.
//
// Values read back from a backend are kept verbatim, so Visibility may hold
// a string outside the enum; anything other than exactly "public" is private.
type Metadata struct {
	Visibility Visibility
	Type       ObjectType
	Extra      map[string]string
}

// IsPublic reports whether the object may be served without authentication.
func (m Metadata) IsPublic() bool {
	return m.Visibility == VisibilityPublic
}

func (m Metadata) IsText() bool {
	return m.Type == ObjectTypeText
}

// Map renders the metadata as lowercase header name to value, omitting
// unset fields.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Visibility != "" {
		out[HeaderVisibility] = string(m.Visibility)
	}
	if m.Type != "" {
		out[HeaderType] = string(m.Type)
	}
	return out
}

// MarshalJSON encodes m in its header map form.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MetadataFromMap(raw)
	return nil
}

// Keys returns the sorted header names carried by m.
func (m Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m.Map()))
}

// MetadataFromMap rebuilds Metadata from what a backend returned. Key case is
// normalised since backends disagree on it; keys without the x-store- prefix
// are ignored.
func MetadataFromMap(raw map[string]string) Metadata {
	var m Metadata
	for k, v := range raw {
		key := strings.ToLower(k)
		switch {
		case key == HeaderVisibility:
			m.Visibility = Visibility(v)
		case key == HeaderType:
			m.Type = ObjectType(v)
		case strings.HasPrefix(key, MetadataPrefix):
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[key] = v
		}
	}
	return m
}

// MetadataPolicy is the allow-list applied to incoming x-store-* headers.
type MetadataPolicy struct {
	extra map[string]struct{}
}

// NewMetadataPolicy accepts the built-in keys plus extraKeys. Extra keys must
// carry the x-store- prefix.
func NewMetadataPolicy(extraKeys []string) (*MetadataPolicy, error) {
	p := &MetadataPolicy{extra: make(map[string]struct{}, len(extraKeys))}
	for _, k := range extraKeys {
		key := strings.ToLower(strings.TrimSpace(k))
		if !strings.HasPrefix(key, MetadataPrefix) || key == MetadataPrefix {
			return nil, fmt.Errorf("new metadata policy: key %q must start with %s: %w", k, MetadataPrefix, ErrInvalidInput)
		}
		if key == HeaderVisibility || key == HeaderType {
			continue
		}
		p.extra[key] = struct{}{}
	}
	return p, nil
}

// FromHeader collects the x-store-* request headers. Recognised enum keys are
// validated; unrecognised x-store-* keys are returned in dropped.
func (p *MetadataPolicy) FromHeader(h http.Header) (m Metadata, dropped []string, err error) {
	for name, values := range h {
		key := strings.ToLower(name)
		if !strings.HasPrefix(key, MetadataPrefix) || len(values) == 0 {
			continue
		}
		value := values[0]

		switch key {
		case HeaderVisibility:
			m.Visibility, err = ParseVisibility(value)
			if err != nil {
				return Metadata{}, nil, err
			}
		case HeaderType:
			m.Type, err = ParseObjectType(value)
			if err != nil {
				return Metadata{}, nil, err
			}
		default:
			if _, ok := p.extra[key]; !ok {
				dropped = append(dropped, key)
				continue
			}
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[key] = value
		}
	}
	slices.Sort(dropped)
	return m, dropped, nil
}
