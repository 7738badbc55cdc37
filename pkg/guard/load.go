package guard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kshedden/gonpy"
	"github.com/mchmarny/lstvscan/pkg/net"
	"gopkg.in/yaml.v3"
)

// LoadIDs reads validation study ids from path, a local file or an http(s)
// URL. Supported formats, by extension: .npy (1-D integer array),
// .yaml/.yml/.json (list of integers), anything else as text with ids
// separated by newlines, commas or spaces.
func LoadIDs(ctx context.Context, path string) ([]int64, error) {
	if path == "" {
		return nil, errors.New("validation ids path required")
	}
	if isURL(path) {
		return loadRemoteIDs(ctx, path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading validation ids %s: %w", path, err)
	}
	return parseIDs(path, b)
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func loadRemoteIDs(ctx context.Context, rawURL string) ([]int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid validation ids URL %s: %w", rawURL, err)
	}

	dir, err := os.MkdirTemp("", "lstvscan-ids-")
	if err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "ids"+filepath.Ext(u.Path))
	if err := net.Download(ctx, rawURL, local); err != nil {
		return nil, fmt.Errorf("downloading validation ids %s: %w", rawURL, err)
	}
	b, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("reading validation ids %s: %w", local, err)
	}
	return parseIDs(u.Path, b)
}

func parseIDs(name string, b []byte) ([]int64, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".npy":
		return ParseNPY(bytes.NewReader(b))
	case ".yaml", ".yml", ".json":
		var ids []int64
		if err := yaml.Unmarshal(b, &ids); err != nil {
			return nil, fmt.Errorf("parsing validation ids %s: %w", name, err)
		}
		return ids, nil
	default:
		return ParseText(bytes.NewReader(b))
	}
}

// ParseText reads integers separated by whitespace or commas. Lines starting
// with # are ignored.
func ParseText(r io.Reader) ([]int64, error) {
	var ids []int64
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		txt := strings.TrimSpace(s.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			continue
		}
		for _, f := range strings.FieldsFunc(txt, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			id, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid id %q: %w", line, f, err)
			}
			ids = append(ids, id)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scanning ids: %w", err)
	}
	return ids, nil
}

var npyItemSize = map[string]int{
	"i8": 8,
	"u8": 8,
	"i4": 4,
	"u4": 4,
}

// ParseNPY decodes a NumPy .npy file holding a 1-D integer array (i8, i4,
// u8 or u4, either byte order). The declared length must fit in the payload.
func ParseNPY(r io.Reader) ([]int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading npy: %w", err)
	}
	body := bytes.NewReader(b)

	rdr, err := newNPYReader(body)
	if err != nil {
		return nil, fmt.Errorf("reading npy header: %w", err)
	}
	if len(rdr.Shape) != 1 {
		return nil, fmt.Errorf("expected 1-D npy array, got shape %v", rdr.Shape)
	}
	size, ok := npyItemSize[rdr.Dtype]
	if !ok {
		return nil, fmt.Errorf("unsupported npy dtype %s", rdr.Dtype)
	}
	n := rdr.Shape[0]
	if n < 0 {
		return nil, fmt.Errorf("invalid npy shape (%d,)", n)
	}
	if n > body.Len()/size {
		return nil, fmt.Errorf("npy declares %d values but holds %d bytes", n, body.Len())
	}

	switch rdr.Dtype {
	case "i8":
		return rdr.GetInt64()
	case "u8":
		return widen(rdr.GetUint64())
	case "i4":
		return widen(rdr.GetInt32())
	default:
		return widen(rdr.GetUint32())
	}
}

// newNPYReader parses the header. Malformed shapes and descriptors make the
// decoder panic, so they are turned into errors here.
func newNPYReader(r io.Reader) (rdr *gonpy.NpyReader, err error) {
	defer func() {
		if p := recover(); p != nil {
			rdr, err = nil, fmt.Errorf("malformed npy header: %v", p)
		}
	}()
	return gonpy.NewReader(r)
}

func widen[T int32 | uint32 | uint64](v []T, err error) ([]int64, error) {
	if err != nil {
		return nil, fmt.Errorf("reading npy data: %w", err)
	}
	ids := make([]int64, len(v))
	for i, x := range v {
		ids[i] = int64(x)
	}
	return ids, nil
}
