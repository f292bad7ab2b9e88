package sharding

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"strconv"

	"github.com/shardkit/proxy/pkg/hashing"
	"github.com/shardkit/proxy/pkg/sqlast"
)

// Calc computes the shard index for a single literal under algo,
// modulo n. raw is the literal's unquoted text and kind selects how it
// is parsed. n must be positive.
func Calc(raw string, kind sqlast.LiteralKind, algo Algorithm, n int) (int, error) {
	if n <= 0 {
		return 0, New(KindCalcMod, "shard count must be greater than zero")
	}
	switch algo {
	case Mod, "":
		return calcMod(raw, kind, n)
	case CRC32Mod:
		b, err := bigEndianBytes(raw, kind)
		if err != nil {
			return 0, err
		}
		return int(crc32.ChecksumIEEE(b) % uint32(n)), nil
	case Murmur3Mod:
		b, err := bigEndianBytes(raw, kind)
		if err != nil {
			return 0, err
		}
		return int(hashing.NewHashFunction("murmur3").Hash(string(b)) % uint64(n)), nil
	case XXHashMod:
		b, err := bigEndianBytes(raw, kind)
		if err != nil {
			return 0, err
		}
		return int(hashing.NewHashFunction("xxhash").Hash(string(b)) % uint64(n)), nil
	default:
		return 0, New(KindCalcMod, "unknown algorithm "+string(algo))
	}
}

func calcMod(raw string, kind sqlast.LiteralKind, n int) (int, error) {
	switch kind {
	case sqlast.LiteralFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, Wrap(KindParseFloat, raw, err)
		}
		r := math.Mod(v, float64(n))
		if r < 0 {
			r += float64(n)
		}
		return int(math.RoundToEven(r)), nil
	case sqlast.LiteralSigned:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, Wrap(KindParseInt, raw, err)
		}
		m := v % int64(n)
		if m < 0 {
			m += int64(n)
		}
		return int(m), nil
	default:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, Wrap(KindParseInt, raw, err)
		}
		return int(v % uint64(n)), nil
	}
}

// bigEndianBytes renders a literal as 8 big-endian bytes so the
// hash-based algorithms see a stable, width-independent encoding
// regardless of the literal's original textual form.
func bigEndianBytes(raw string, kind sqlast.LiteralKind) ([]byte, error) {
	buf := make([]byte, 8)
	switch kind {
	case sqlast.LiteralFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, Wrap(KindParseFloat, raw, err)
		}
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	case sqlast.LiteralSigned:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, Wrap(KindParseInt, raw, err)
		}
		binary.BigEndian.PutUint64(buf, uint64(v))
	default:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, Wrap(KindParseInt, raw, err)
		}
		binary.BigEndian.PutUint64(buf, v)
	}
	return buf, nil
}
