package typedData

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
)

const (
	domainTypeName    = "EIP712Domain"
	primaryTypeName   = "Message"
	metadataTypeName  = "Metadata"
	txMessageTypeName = "TxMessage"
)

var identifierRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// registry hands out struct type names keyed by the JSON path of the value
// they describe. Every element of an array shares the path of its parent
// plus "[]", so all messages of a transaction resolve to the same types.
type registry struct {
	types apitypes.Types
	taken map[string]struct{}
	paths map[string]string
}

func newRegistry() *registry {
	r := &registry{
		types: apitypes.Types{},
		taken: map[string]struct{}{},
		paths: map[string]string{},
	}
	for _, name := range []string{domainTypeName, primaryTypeName, metadataTypeName, txMessageTypeName} {
		r.taken[name] = struct{}{}
	}
	return r
}

// reserve returns the name bound to path, binding base (suffixed with _n
// when taken) on first use.
func (r *registry) reserve(path, base string) string {
	if name, ok := r.paths[path]; ok {
		return name
	}
	name := base
	for n := 1; r.isTaken(name); n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	r.taken[name] = struct{}{}
	r.paths[path] = name
	return name
}

// settle defines name on first call. Later calls must carry the same layout.
func (r *registry) settle(name string, fields []apitypes.Type) error {
	if fields == nil {
		fields = []apitypes.Type{}
	}
	prev, ok := r.types[name]
	if !ok {
		r.types[name] = fields
		return nil
	}
	if !sameFields(prev, fields) {
		return txErrors.NewValidationError("messages", fmt.Sprintf("type %s has conflicting layouts %s and %s", name, layout(prev), layout(fields)))
	}
	return nil
}

func (r *registry) isTaken(name string) bool {
	_, ok := r.taken[name]
	return ok
}

func sameFields(a, b []apitypes.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

func layout(fields []apitypes.Type) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Type + " " + f.Name
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// pascal turns snake_case keys into PascalCase type name stems.
func pascal(key string) string {
	var b strings.Builder
	upper := true
	for _, c := range key {
		if c == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(c))
			upper = false
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isIdentifier(key string) bool {
	return identifierRegexp.MatchString(key)
}
