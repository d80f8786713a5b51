// 包 ingest：聚会数据的离线导入通道（JSON 数组或逐行 JSON），来源可以是本地文件或上游 URL
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"party-map/internal/coord"
	"party-map/internal/logger"
	"party-map/internal/party"
	"party-map/internal/store"
)

// Decode：读取聚会列表并把坐标从 sys 转换为 WGS-84
// 首个非空字符为 '[' 时按 JSON 数组解析，否则按每行一个 JSON 对象解析（空行跳过）
// 约束：任一条记录非法时整体返回错误，不做部分导入
func Decode(r io.Reader, sys coord.System) ([]*party.Party, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	var ps []*party.Party
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&ps); err != nil {
			return nil, err
		}
	} else {
		sc := bufio.NewScanner(br)
		sc.Buffer(make([]byte, 1024), 1024*1024)
		line := 0
		for sc.Scan() {
			line++
			b := bytes.TrimSpace(sc.Bytes())
			if len(b) == 0 {
				continue
			}
			var p party.Party
			if err := json.Unmarshal(b, &p); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			ps = append(ps, &p)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	for i, p := range ps {
		if p == nil {
			return nil, fmt.Errorf("record %d: null", i)
		}
		pos := coord.ToWGS84(p.Position(), sys)
		p.Lng, p.Lat = pos.Lon(), pos.Lat()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return ps, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			continue
		}
		return b, br.UnreadByte()
	}
}

// Import：解析后在一个事务内写入
func Import(ctx context.Context, st *store.Store, r io.Reader, sys coord.System) (int, error) {
	ps, err := Decode(r, sys)
	if err != nil {
		return 0, err
	}
	if len(ps) == 0 {
		return 0, nil
	}
	return st.UpsertBatch(ctx, ps)
}

// ImportFile：从本地文件导入
func ImportFile(ctx context.Context, st *store.Store, path string, sys coord.System) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Import(ctx, st, f, sys)
}

// FetchAndImport：拉取上游列表并写入；http/https 以外的地址按本地路径处理
// 异常：网络错误、非 200 与解析失败直接返回，不做重试（交由调度层处理）
func FetchAndImport(ctx context.Context, st *store.Store, src string, sys coord.System) (int, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return ImportFile(ctx, st, src, sys)
	}
	logger.L().Info("ingest_start", "src", src)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ingest: bad status %d", resp.StatusCode)
	}
	n, err := Import(ctx, st, resp.Body, sys)
	if err != nil {
		return 0, err
	}
	logger.L().Info("ingest_done", "count", n)
	return n, nil
}

// EnsureInitialized：聚会表为空时执行一次导入，返回写入条数
func EnsureInitialized(ctx context.Context, st *store.Store, src string, sys coord.System) (int, error) {
	t, err := st.Count(ctx)
	if err != nil {
		return 0, err
	}
	if t.Total > 0 {
		return 0, nil
	}
	return FetchAndImport(ctx, st, src, sys)
}
