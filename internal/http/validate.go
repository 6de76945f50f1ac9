package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"hrunner/internal/config"
	"hrunner/internal/core"
	"hrunner/internal/template"
)

// response is the view of an HTTP response that validators check against.
type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

// lookup resolves a validator check expression.
//
//	status_code      response status
//	headers.<Name>   response header (canonicalized)
//	body             raw body as string
//	$.path           JSONPath into the body
func (r *response) lookup(check string) (any, error) {
	switch {
	case check == "status_code":
		return r.statusCode, nil
	case check == "body":
		return string(r.body), nil
	case strings.HasPrefix(check, "headers."):
		name := strings.TrimPrefix(check, "headers.")
		if _, ok := r.header[http.CanonicalHeaderKey(name)]; !ok {
			return nil, fmt.Errorf("header %q not present", name)
		}
		return r.header.Get(name), nil
	case strings.HasPrefix(check, "$"):
		v, ok := template.Lookup(r.body, check)
		if !ok {
			return nil, fmt.Errorf("path %q not found in body", check)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported check %q", check)
}

// validate runs all validators and joins every failure.
func validate(resp *response, validators []config.Validator, vars core.Variables) error {
	var errs []error
	for _, v := range validators {
		actual, err := resp.lookup(v.Check)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		expect := v.Expect
		if s, ok := expect.(string); ok {
			if expect, err = template.Substitute(s, vars); err != nil {
				errs = append(errs, fmt.Errorf("%s expect: %w", v.Check, err))
				continue
			}
		}

		if err := compare(v.Comparator, actual, expect); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Check, err))
		}
	}
	return errors.Join(errs...)
}

func compare(comparator string, actual, expect any) error {
	switch comparator {
	case "eq", "equals", "==":
		if !looseEqual(actual, expect) {
			return fmt.Errorf("expected %v, got %v", expect, actual)
		}
	case "ne", "not_equals", "!=":
		if looseEqual(actual, expect) {
			return fmt.Errorf("expected not %v", expect)
		}
	case "lt", "le", "gt", "ge":
		a, aok := toFloat(actual)
		e, eok := toFloat(expect)
		if !aok || !eok {
			return fmt.Errorf("%s needs numbers, got %v and %v", comparator, actual, expect)
		}
		ok := map[string]bool{"lt": a < e, "le": a <= e, "gt": a > e, "ge": a >= e}[comparator]
		if !ok {
			return fmt.Errorf("expected %v %s %v", actual, comparator, expect)
		}
	case "contains":
		if !contains(actual, expect) {
			return fmt.Errorf("%v does not contain %v", actual, expect)
		}
	case "startswith":
		if !strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(expect)) {
			return fmt.Errorf("%v does not start with %v", actual, expect)
		}
	case "endswith":
		if !strings.HasSuffix(fmt.Sprint(actual), fmt.Sprint(expect)) {
			return fmt.Errorf("%v does not end with %v", actual, expect)
		}
	case "len_eq", "length_equals":
		n, ok := length(actual)
		want, eok := toFloat(expect)
		if !ok || !eok {
			return fmt.Errorf("len_eq needs a sized value and a number, got %v and %v", actual, expect)
		}
		if float64(n) != want {
			return fmt.Errorf("expected length %v, got %d", expect, n)
		}
	case "regex", "regex_match":
		re, err := regexp.Compile(fmt.Sprint(expect))
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		if !re.MatchString(fmt.Sprint(actual)) {
			return fmt.Errorf("%v does not match %v", actual, expect)
		}
	default:
		return fmt.Errorf("unknown comparator %q", comparator)
	}
	return nil
}

// looseEqual compares numbers by value and everything else by string form,
// since YAML ints, JSON floats and substituted strings meet here.
func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func contains(container, item any) bool {
	switch c := container.(type) {
	case []any:
		for _, el := range c {
			if looseEqual(el, item) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := c[fmt.Sprint(item)]
		return ok
	}
	return strings.Contains(fmt.Sprint(container), fmt.Sprint(item))
}

func length(v any) (int, bool) {
	switch c := v.(type) {
	case string:
		return len(c), true
	case []any:
		return len(c), true
	case map[string]any:
		return len(c), true
	}
	return 0, false
}
