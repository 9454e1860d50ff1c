package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrMergeFailed is returned by merge functions for payloads they cannot combine.
var ErrMergeFailed = errors.New("merge failed")

// MergeFunc combines two concurrent payloads of the same item.
// Implementations must be commutative and associative so that replicas
// folding the same set in a different order converge.
type MergeFunc func(a, b []byte) ([]byte, error)

// Built-in merge function names
const (
	MergeDelta = "delta" // сумма числовых приращений (счетчики)
	MergeMax   = "max"   // максимум числовых значений
	MergeUnion = "union" // объединение JSON-массивов строк
)

// MergeByName returns a built-in merge function. Empty name means none (LWW).
func MergeByName(name string) (MergeFunc, error) {
	switch name {
	case "", "lww":
		return nil, nil
	case MergeDelta:
		return mergeDelta, nil
	case MergeMax:
		return mergeMax, nil
	case MergeUnion:
		return mergeUnion, nil
	default:
		return nil, fmt.Errorf("unknown merge function %q", name)
	}
}

type number struct {
	f     float64
	i     int64
	isInt bool
}

func parseNumber(p []byte) (number, error) {
	s := strings.TrimSpace(string(p))
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: i, f: float64(i), isInt: true}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return number{}, fmt.Errorf("%w: %q is not a number", ErrMergeFailed, s)
	}
	return number{f: f}, nil
}

func (n number) bytes() []byte {
	if n.isInt {
		return []byte(strconv.FormatInt(n.i, 10))
	}
	return []byte(strconv.FormatFloat(n.f, 'f', -1, 64))
}

// mergeDelta складывает приращения. Целые складываются точно, поэтому
// порядок свертки не влияет на результат.
func mergeDelta(a, b []byte) ([]byte, error) {
	x, err := parseNumber(a)
	if err != nil {
		return nil, err
	}
	y, err := parseNumber(b)
	if err != nil {
		return nil, err
	}

	if x.isInt && y.isInt {
		sum := x.i + y.i
		// переполнение int64
		if (y.i > 0 && sum < x.i) || (y.i < 0 && sum > x.i) {
			return nil, fmt.Errorf("%w: integer overflow", ErrMergeFailed)
		}
		return number{i: sum, isInt: true}.bytes(), nil
	}
	return number{f: x.f + y.f}.bytes(), nil
}

func mergeMax(a, b []byte) ([]byte, error) {
	x, err := parseNumber(a)
	if err != nil {
		return nil, err
	}
	y, err := parseNumber(b)
	if err != nil {
		return nil, err
	}
	if y.f > x.f || (y.f == x.f && y.isInt && !x.isInt) {
		return y.bytes(), nil
	}
	return x.bytes(), nil
}

func mergeUnion(a, b []byte) ([]byte, error) {
	var x, y []string
	if err := json.Unmarshal(a, &x); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}
	if err := json.Unmarshal(b, &y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}

	set := make(map[string]struct{}, len(x)+len(y))
	for _, v := range x {
		set[v] = struct{}{}
	}
	for _, v := range y {
		set[v] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal union: %w", err)
	}
	return data, nil
}
