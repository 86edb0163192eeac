package coerce

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Text is a JSON scalar read as a string whatever its wire type.
//
// Upstream APIs are inconsistent: AMap sends [] for an empty province and
// Weibo sends errno as either "100001" or 100001. Strings and numbers keep
// their text, arrays yield their first element, and null, booleans and
// objects yield "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '[':
		var items []Text
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*t = ""
		if len(items) > 0 {
			*t = items[0]
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*t = Text(data)
	default:
		*t = ""
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Int reports the value as an integer, or def when it is not numeric.
func (t Text) Int(def int) int {
	n, err := strconv.Atoi(string(t))
	if err != nil {
		return def
	}
	return n
}
