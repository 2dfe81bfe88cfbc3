package capture

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/valyala/fastjson"
)

var operationRe = regexp.MustCompile(`^\s*(?:query|mutation|subscription)\s+([_A-Za-z][_0-9A-Za-z]*)`)

// OperationName extracts the GraphQL operation name from a request body.
// It prefers the explicit operationName field and falls back to the name in
// the query document. Batched requests yield a comma-separated list. An
// unparsable or anonymous body yields "".
func OperationName(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return ""
	}

	switch v.Type() {
	case fastjson.TypeObject:
		return operationOf(v)
	case fastjson.TypeArray:
		items, _ := v.Array()
		names := make([]string, 0, len(items))
		for _, item := range items {
			if name := operationOf(item); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ",")
	case fastjson.TypeString:
		// Some clients double-encode the payload.
		s, _ := v.StringBytes()
		if json.Valid(s) {
			return OperationName(s)
		}
		return ""
	default:
		return ""
	}
}

func operationOf(v *fastjson.Value) string {
	if name := v.GetStringBytes("operationName"); len(name) > 0 {
		return string(name)
	}
	if m := operationRe.FindSubmatch(v.GetStringBytes("query")); m != nil {
		return string(m[1])
	}
	return ""
}

// ParseBody keeps a body that is valid JSON as-is and wraps anything else in
// a JSON string, so both can be stored as raw JSON.
func ParseBody(content []byte) json.RawMessage {
	if len(content) == 0 {
		return nil
	}
	if fastjson.ValidateBytes(content) == nil {
		return json.RawMessage(content)
	}
	quoted, err := json.Marshal(string(content))
	if err != nil {
		return nil
	}
	return quoted
}
