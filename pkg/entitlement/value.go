package entitlement

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Unlimited is the quota sentinel meaning "no cap" (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Kind identifies the shape of a feature Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindQuota
	KindTier
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindQuota:
		return "quota"
	case KindTier:
		return "tier"
	default:
		return "invalid"
	}
}

// Value is a feature value: a boolean flag, an integer quota or a qualitative tier.
// The zero Value is KindInvalid and represents malformed or missing data.
type Value struct {
	kind  Kind
	flag  bool
	quota int64
	tier  string
}

// Bool returns a boolean feature value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Quota returns a numeric quota. Use Unlimited for no cap.
func Quota(n int64) Value { return Value{kind: KindQuota, quota: n} }

// Tier returns a qualitative tier such as a support level.
func Tier(s string) Value { return Value{kind: KindTier, tier: s} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the flag and whether v is a Bool.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

// AsQuota returns the quota and whether v is a Quota.
func (v Value) AsQuota() (int64, bool) { return v.quota, v.kind == KindQuota }

// AsTier returns the tier and whether v is a Tier.
func (v Value) AsTier() (string, bool) { return v.tier, v.kind == KindTier }

// Any returns the underlying Go value: bool, int64, string or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.flag
	case KindQuota:
		return v.quota
	case KindTier:
		return v.tier
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindQuota:
		return strconv.FormatInt(v.quota, 10)
	case KindTier:
		return v.tier
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the value in its natural JSON shape; Invalid becomes null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON never fails on a well-formed document: values of an unexpected
// shape (null, objects, arrays, fractional numbers) decode to an Invalid Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = Value{}
	if len(data) == 0 {
		return nil
	}

	switch c := data[0]; {
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Tier(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if q, ok := integral(n.String()); ok {
			*v = Quota(q)
		}
	}
	return nil
}

// MarshalYAML encodes the value as a plain YAML scalar.
func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

// UnmarshalYAML decodes scalars by their resolved tag. Non-scalar nodes and nulls
// decode to an Invalid Value.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	*v = Value{}
	if node.Kind != yaml.ScalarNode {
		return nil
	}

	switch node.ShortTag() {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Bool(b)
	case "!!int", "!!float":
		if q, ok := integral(node.Value); ok {
			*v = Quota(q)
		}
	case "!!str":
		*v = Tier(node.Value)
	}
	return nil
}

// integral parses s as an int64, accepting floats with no fractional part.
func integral(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
