package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nci/gstream/region"
)

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// unescapeUrl decodes %XX escapes and leaves malformed ones untouched,
// unlike url.QueryUnescape which rejects them.
func unescapeUrl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '%' && i+2 < len(s) && ishex(s[i+1]) && ishex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 3
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// ParseQuery splits key=value pairs on '&'. An '&' escaped as "\&" is
// kept inside the value. Keys are lower-cased; the box value is decoded
// leniently.
func ParseQuery(query string) (m url.Values, err error) {
	m = make(url.Values)
	for query != "" {
		key := query
		iSep := -1
		for i := 0; i < len(key); i++ {
			if key[i] == '&' {
				if i > 0 && key[i-1] == '\\' {
					continue
				}
				iSep = i
				break
			}
		}
		if iSep >= 0 {
			key, query = key[:iSep], key[iSep+1:]
		} else {
			query = ""
		}
		if key == "" {
			continue
		}
		value := ""
		if i := strings.Index(key, "="); i >= 0 {
			key, value = key[:i], key[i+1:]
			value = strings.Replace(value, "\\&", "&", -1)
		}
		key, err1 := url.QueryUnescape(key)
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}
		key = strings.ToLower(key)

		if key == "box" {
			value = unescapeUrl(value)
		} else {
			value, err1 = url.QueryUnescape(value)
		}
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}

		m[key] = append(m[key], value)
	}
	return m, err
}

// ExtendedFilename is an output path carrying writer options after a '?',
// e.g. out.raw?&streaming:type=tiled&streaming:sizemode=nbsplits&streaming:sizevalue=8&box=0:0:512:512
type ExtendedFilename struct {
	Path      string
	Streaming StreamingConfig
	Box       *region.Region
	Options   url.Values
}

func ParseExtendedFilename(name string) (*ExtendedFilename, error) {
	ef := &ExtendedFilename{Path: name, Options: make(url.Values)}
	i := strings.Index(name, "?")
	if i < 0 {
		return ef, nil
	}
	ef.Path = name[:i]
	if len(ef.Path) == 0 {
		return nil, fmt.Errorf("%w: extended filename %q has no path", region.ErrInvalidArgument, name)
	}

	params, err := ParseQuery(name[i+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", region.ErrInvalidArgument, err)
	}

	for key, values := range params {
		value := strings.TrimSpace(values[len(values)-1])
		switch key {
		case "streaming:type":
			ef.Streaming.Type = value
		case "streaming:sizemode":
			ef.Streaming.SizeMode = value
		case "streaming:sizevalue":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: streaming:sizevalue %q is not a number", region.ErrInvalidArgument, value)
			}
			ef.Streaming.SizeValue = int(v)
		case "box":
			box, err := ParseBox(value)
			if err != nil {
				return nil, err
			}
			ef.Box = &box
		default:
			ef.Options[key] = values
		}
	}
	return ef, nil
}

// ParseBox reads a box written as origin then size, colon separated:
// x:y:w:h for 2-D, x:y:z:w:h:d for 3-D.
func ParseBox(value string) (region.Region, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return region.Region{}, fmt.Errorf("%w: box %q must list an origin and a size", region.ErrInvalidArgument, value)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return region.Region{}, fmt.Errorf("%w: box %q: %v", region.ErrInvalidArgument, value, err)
		}
		nums[i] = v
	}
	dim := len(nums) / 2
	return region.MakeRegion(nums[:dim], nums[dim:])
}
