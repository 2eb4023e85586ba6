package postgres

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null"
	uuid "github.com/satori/go.uuid"

	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
)

// SubstituteParameters - Rewrites the command text, replacing each parameter
// placeholder with a type-correct literal encoding.
//
// This is required because plan capture does not produce representative
// cardinality estimates for bound parameters. Supported placeholder shapes
// are @name, :name, and $n for numeric names. Longer names are replaced
// first, so @p1 never clobbers part of @p10.
func SubstituteParameters(query string, parameters state.ParameterMap) (string, error) {
	if len(parameters) == 0 {
		return query, nil
	}

	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	result := query
	for _, name := range names {
		literal := EncodeLiteral(parameters[name])
		for _, placeholder := range placeholdersFor(name) {
			pattern, err := regexp.Compile(regexp.QuoteMeta(placeholder) + `\b`)
			if err != nil {
				return "", err
			}
			result = pattern.ReplaceAllLiteralString(result, literal)
		}
	}

	return result, nil
}

func placeholdersFor(name string) []string {
	// Host layers differ in whether the stored parameter name carries its
	// placeholder sigil already
	if strings.HasPrefix(name, "@") || strings.HasPrefix(name, ":") || strings.HasPrefix(name, "$") {
		return []string{name}
	}

	placeholders := []string{"@" + name, ":" + name}
	if _, err := strconv.Atoi(name); err == nil {
		placeholders = append(placeholders, "$"+name)
	}
	return placeholders
}

// EncodeLiteral - Inline literal encoding per supported type: strings quoted
// with embedded quotes doubled, numbers in invariant decimal form, booleans
// as 1/0, timestamps in a fixed sortable format, UUIDs quoted, byte arrays as
// a hex literal, nil as NULL.
func EncodeLiteral(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05.000") + "'"
	case uuid.UUID:
		return "'" + v.String() + "'"
	case []byte:
		return "'\\x" + hex.EncodeToString(v) + "'"
	case null.String:
		if !v.Valid {
			return "NULL"
		}
		return quoteString(v.String)
	case null.Int:
		if !v.Valid {
			return "NULL"
		}
		return strconv.FormatInt(v.Int64, 10)
	case null.Float:
		if !v.Valid {
			return "NULL"
		}
		return strconv.FormatFloat(v.Float64, 'f', -1, 64)
	case null.Bool:
		if !v.Valid {
			return "NULL"
		}
		if v.Bool {
			return "1"
		}
		return "0"
	default:
		// Unknown types degrade to their quoted string form rather than
		// failing the whole capture
		return quoteString(fmt.Sprintf("%v", v))
	}
}

func quoteString(s string) string {
	return "'" + strings.Replace(s, "'", "''", -1) + "'"
}
