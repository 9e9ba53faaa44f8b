package models

import "fmt"

// Label is a document quality tier.
type Label string

const (
	LabelLow    Label = "LOW"
	LabelMedium Label = "MEDIUM"
	LabelHigh   Label = "HIGH"
)

// Labels lists every tier in manifest order.
var Labels = []Label{LabelHigh, LabelMedium, LabelLow}

// ParseLabel converts a stored tier name back into a Label.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelLow, LabelMedium, LabelHigh:
		return Label(s), nil
	}
	return "", fmt.Errorf("unknown quality label %q", s)
}
