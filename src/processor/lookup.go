package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 参考表中没有该机场代码
	ErrNotFound = errors.New("airport code not found")
	// ErrAmbiguous 参考表中该机场代码出现多次
	ErrAmbiguous = errors.New("airport code is ambiguous")
)

// DuplicatePolicy 参考表中代码重复时的处理方式
type DuplicatePolicy int

const (
	// FirstMatch 取表中第一条匹配记录(默认)
	FirstMatch DuplicatePolicy = iota
	// RejectDuplicates 代码重复时返回ErrAmbiguous
	RejectDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case FirstMatch:
		return "first_match"
	case RejectDuplicates:
		return "reject_duplicates"
	default:
		return "unknown"
	}
}

// DistinctOrigins 返回"出发地代码, 出发城市"标签，按首次出现顺序去重
// 同一代码若城市文本不同会得到两个标签，用于暴露数据质量问题
// 没有城市列时标签为"JFK, "
func DistinctOrigins(flights []FlightRecord) []string {
	seen := make(map[string]struct{})
	labels := make([]string, 0)

	for i := range flights {
		label := flights[i].Origin + ", " + flights[i].OriginCity
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}

// DistinctOriginCodes 返回出发地代码，按首次出现顺序去重
func DistinctOriginCodes(flights []FlightRecord) []string {
	return distinct(flights, func(r *FlightRecord) string { return r.Origin })
}

// DistinctDestinations 返回目的地代码，按首次出现顺序去重
func DistinctDestinations(flights []FlightRecord) []string {
	return distinct(flights, func(r *FlightRecord) string { return r.Dest })
}

func distinct(flights []FlightRecord, key func(*FlightRecord) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)

	for i := range flights {
		v := key(&flights[i])
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

// Coordinates 查询机场坐标，代码重复时取第一条匹配记录
func Coordinates(codes []AirportCode, code string) (LatLon, error) {
	return CoordinatesWithPolicy(codes, code, FirstMatch)
}

// CoordinatesWithPolicy 按指定的重复处理方式查询机场坐标
// 返回的错误可用errors.Is匹配ErrNotFound或ErrAmbiguous
func CoordinatesWithPolicy(codes []AirportCode, code string, policy DuplicatePolicy) (LatLon, error) {
	found := -1

	for i := range codes {
		if codes[i].Code != code {
			continue
		}
		if found < 0 {
			found = i
			if policy == FirstMatch {
				break
			}
			continue
		}
		return LatLon{}, fmt.Errorf("%w: %q", ErrAmbiguous, code)
	}

	if found < 0 {
		return LatLon{}, fmt.Errorf("%w: %q", ErrNotFound, code)
	}

	return LatLon{
		Latitude:  codes[found].Latitude,
		Longitude: codes[found].Longitude,
	}, nil
}
