// Copyright The JmxTrans Authors
// SPDX-License-Identifier: MIT

package elasticwriter // import "github.com/yxydde/jmxtrans"

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const elasticTypeName = "doc"

// Server identifies the monitored JVM a batch of samples was collected from.
type Server struct {
	Host  string
	Port  int
	Alias string
}

// Sample is one metric observation produced by the collector. Value may be
// non-numeric; such samples are filtered out before mapping and never reach
// the backend.
type Sample struct {
	ObjDomain     string
	ClassName     string
	TypeName      string
	AttributeName string
	ValuePath     []string
	KeyAlias      string
	Value         any

	// Epoch is the collection timestamp in epoch milliseconds.
	Epoch int64
}

// bulkAction is the ndjson action line preceding each document line in the
// bulk payload.
type bulkAction struct {
	Index bulkActionParams `json:"index"`
}

type bulkActionParams struct {
	Index string `json:"_index"`
	Type  string `json:"_type"`
}

var errValueConversion = errors.New("sample value is not convertible to float64")

// isNumeric reports whether a sample value is eligible for transmission,
// i.e. whether it converts to a float64. Strings are accepted when they
// parse under strconv.ParseFloat rules, which covers integer text as well.
func isNumeric(v any) bool {
	_, err := toFloat(v)
	return err == nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errValueConversion, n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errValueConversion, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", errValueConversion, v)
	}
}

// encodeModel maps filtered samples to the flat documents indexed by the
// backend.
type encodeModel struct{}

// encodeSample converts one numeric sample plus its source-server context
// into a document. The caller is expected to have filtered the sample with
// isNumeric already; a conversion failure here is a contract violation and
// is fatal to the sample only.
func (encodeModel) encodeSample(server Server, sample Sample) (map[string]any, error) {
	value, err := toFloat(sample.Value)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"serverAlias":   server.Alias,
		"server":        server.Host,
		"port":          server.Port,
		"objDomain":     sample.ObjDomain,
		"className":     sample.ClassName,
		"typeName":      sample.TypeName,
		"attributeName": sample.AttributeName,
		// Embedded '/' characters in path segments are not escaped, so the
		// joined path is ambiguous in that case.
		"valuePath": strings.Join(sample.ValuePath, "/"),
		"keyAlias":  sample.KeyAlias,
		"value":     value,
		"timestamp": sample.Epoch,
	}, nil
}
