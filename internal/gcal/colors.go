package gcal

// The app's palette is a small fixed set of color tags. Google events carry
// a numeric colorId with a different taxonomy, so tags translate through a
// fixed bidirectional table at the adapter boundary. The tag itself is also
// stashed verbatim in extendedProperties.private so a round trip survives
// even where the colorId mapping is lossy.

// DefaultColorTag is used for events whose remote color is outside the
// known palette.
const DefaultColorTag = "blue"

// colorClassKey is the private extended-property key holding the tag.
const colorClassKey = "colorClass"

var tagToColorID = map[string]string{
	"rose":   "11",
	"indigo": "9",
	"amber":  "5",
	"green":  "2",
	"blue":   "1",
}

var colorIDToTag = map[string]string{
	"11": "rose",
	"9":  "indigo",
	"5":  "amber",
	"2":  "green",
	"1":  "blue",
}

// ColorIDForTag returns the Google colorId for a palette tag, empty when
// the tag has no mapping (the stashed private property still carries it).
func ColorIDForTag(tag string) string {
	return tagToColorID[tag]
}

// TagForColorID returns the palette tag for a Google colorId, falling back
// to the default for unknown identifiers.
func TagForColorID(id string) string {
	if tag, ok := colorIDToTag[id]; ok {
		return tag
	}
	return DefaultColorTag
}

// KnownTag reports whether tag is part of the palette.
func KnownTag(tag string) bool {
	_, ok := tagToColorID[tag]
	return ok
}
