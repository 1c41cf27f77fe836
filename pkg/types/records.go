// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// ClassRecord is one decoded Objective-C class interface.
type ClassRecord struct {
	Name   string
	Header string
}

// ProtocolRecord is one decoded Objective-C protocol interface.
type ProtocolRecord struct {
	Name   string
	Header string
}

// CategoryRecord is one decoded Objective-C category. Its identity is the
// pair of extended class and category name.
type CategoryRecord struct {
	Name      string
	ClassName string
	Header    string
}

// Key returns the category's identity key, "ClassName(CategoryName)".
func (c CategoryRecord) Key() string {
	return fmt.Sprintf("%s(%s)", c.ClassName, c.Name)
}

// ImageRecords holds every record decoded from a single image, plus the
// image path each record was attributed to by the decoder.
type ImageRecords struct {
	ImagePath  string
	Classes    []ClassRecord
	Protocols  []ProtocolRecord
	Categories []CategoryRecord
}

// Count returns the total number of records.
func (r *ImageRecords) Count() int {
	return len(r.Classes) + len(r.Protocols) + len(r.Categories)
}
