package fakeproto

import "strconv"

// Entry is one leaf of a flattened graph.
type Entry struct {
	Path  string
	Value any
}

// Flatten walks obj depth first and returns every leaf with its dotted path,
// using "name[i]" for array elements. Array gaps are skipped; empty
// containers produce no entries.
func Flatten(obj *Object) []Entry {
	var out []Entry
	flattenObject(obj, "", &out)
	return out
}

func flattenObject(obj *Object, prefix string, out *[]Entry) {
	obj.Range(func(key string, v any) bool {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		flattenValue(path, v, out)
		return true
	})
}

func flattenValue(path string, v any, out *[]Entry) {
	switch v := v.(type) {
	case nil:
	case *Object:
		flattenObject(v, path, out)
	case *Array:
		for i, item := range v.Items() {
			flattenValue(path+"["+strconv.Itoa(i)+"]", item, out)
		}
	default:
		*out = append(*out, Entry{Path: path, Value: v})
	}
}
