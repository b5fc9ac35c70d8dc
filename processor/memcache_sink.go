package processor

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/nci/gomemcache/memcache"
	"github.com/nci/gstream/region"
)

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil)
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

func compressZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	enc := zstdEncPool.Get().(*zstd.Encoder)
	defer zstdEncPool.Put(enc)
	enc.Reset(&buf)

	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if _, err := out.ReadFrom(dec); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// TileKey is the memcache key of the tile covering r.
func TileKey(prefix string, r region.Region) string {
	buff := md5.Sum([]byte(r.String()))
	return prefix + hex.EncodeToString(buff[:])
}

// MemcacheSink stores every tile zstd-compressed in memcache under
// TileKey(Prefix, region).
type MemcacheSink struct {
	Client     *memcache.Client
	Prefix     string
	Expiration int32
}

func NewMemcacheSink(addr string, prefix string) *MemcacheSink {
	// lazy connection; errors surface on the first Set
	return &MemcacheSink{Client: memcache.New(addr), Prefix: prefix}
}

func (s *MemcacheSink) Accept(r region.Region, t *Tile) error {
	if err := t.Validate(); err != nil {
		return err
	}
	comp, err := compressZstd(t.Bytes())
	if err != nil {
		return fmt.Errorf("zstd encode: %w", err)
	}
	return s.Client.Set(&memcache.Item{Key: TileKey(s.Prefix, r), Value: comp, Expiration: s.Expiration})
}

// FetchTile reads back a tile stored by MemcacheSink.
func FetchTile(mc *memcache.Client, prefix string, r region.Region, noData float64) (*Tile, error) {
	item, err := mc.Get(TileKey(prefix, r))
	if err != nil {
		return nil, err
	}
	raw, err := decompressZstd(item.Value)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	data, err := BytesToFloat32(raw)
	if err != nil {
		return nil, err
	}
	t := &Tile{Region: r.Clone(), Data: data, NoData: noData}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
