package attr

// TypeTag identifies the declared type of a category field. The tag names
// are part of the wire contract for category field definitions.
type TypeTag string

const (
	TypeString   TypeTag = "String"
	TypeNumber   TypeTag = "Number"
	TypeDate     TypeTag = "Date"
	TypeBoolean  TypeTag = "Boolean"
	TypeObjectID TypeTag = "ObjectId"
	TypeArray    TypeTag = "Array"
	TypeMixed    TypeTag = "Mixed"
)

// TypeTags lists every recognized tag, in wire order.
var TypeTags = []TypeTag{
	TypeString,
	TypeNumber,
	TypeDate,
	TypeBoolean,
	TypeObjectID,
	TypeArray,
	TypeMixed,
}

// ValidTypeTag reports whether t is one of the recognized type tags.
func ValidTypeTag(t TypeTag) bool {
	switch t {
	case TypeString, TypeNumber, TypeDate, TypeBoolean, TypeObjectID, TypeArray, TypeMixed:
		return true
	}
	return false
}

// Pair is the persisted representation of one dynamic attribute. The store
// keeps attributes as an ordered list of these pairs; clients only ever see
// the flattened map form produced by Decode.
type Pair struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Map is the client-facing representation of a product's dynamic attributes.
type Map map[string]interface{}
