package auditengine

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/projectcore/changecontrol/internal/domain"
)

// Diff performs a deep key-wise recursion over before/after, producing one
// DiffRow per leaf that differs. An object-to-leaf type change at a given
// path is recorded as a single diff row at that path rather than recursing
// further.
func Diff(before, after domain.RawJSON) ([]domain.DiffRow, error) {
	var beforeVal, afterVal interface{}

	if before != nil {
		if err := json.Unmarshal(before, &beforeVal); err != nil {
			return nil, err
		}
	}
	if after != nil {
		if err := json.Unmarshal(after, &afterVal); err != nil {
			return nil, err
		}
	}

	var rows []domain.DiffRow
	walk("", beforeVal, afterVal, &rows)

	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

func walk(path string, before, after interface{}, rows *[]domain.DiffRow) {
	beforeMap, beforeIsMap := before.(map[string]interface{})
	afterMap, afterIsMap := after.(map[string]interface{})

	if beforeIsMap && afterIsMap {
		keys := map[string]struct{}{}
		for k := range beforeMap {
			keys[k] = struct{}{}
		}
		for k := range afterMap {
			keys[k] = struct{}{}
		}
		for k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			walk(childPath, beforeMap[k], afterMap[k], rows)
		}
		return
	}

	if !reflect.DeepEqual(before, after) {
		*rows = append(*rows, domain.DiffRow{Path: path, Before: before, After: after})
	}
}
