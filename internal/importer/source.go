package importer

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourorg/market-data-service/internal/model"
)

// Source is the historical data boundary: fixed-size binary records per
// (market, period, symbol) behind a cutoff-aware read. The collaborator
// providing the files owns their transport; the importer only decodes.
type Source interface {
	// Read decodes every record for one symbol, skipping records whose
	// calendar day is at or after cutoff (zero cutoff keeps everything).
	// Returns the kept bars in file order and the skipped count.
	Read(ctx context.Context, market string, p model.Period, code string, cutoff model.Date) ([]model.Bar, int, error)
}

// Source record layout, little-endian, 32 bytes: datetime u64
// (YYYYMMDDHHMM), open/high/low/close u32 in hundredths, volume u32,
// amount u32. Prices are rescaled to the store's thousandths.
const sourceRecordSize = 32

// FileSource reads per-symbol record files laid out as
// <dir>/<market>/<code>.<ext>, with the extension keyed by period
// (.day for day bars, .min for one-minute bars).
type FileSource struct {
	dir string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource { return &FileSource{dir: dir} }

func sourceExt(p model.Period) string {
	if p == model.PeriodDay {
		return ".day"
	}
	return ".min"
}

// Path returns the record file location for one symbol.
func (s *FileSource) Path(market string, p model.Period, code string) string {
	return filepath.Join(s.dir, strings.ToLower(market), strings.ToLower(code)+sourceExt(p))
}

// Read implements Source. A missing file means no data, not an error:
// the catalog routinely lists symbols the source has nothing for.
func (s *FileSource) Read(ctx context.Context, market string, p model.Period, code string, cutoff model.Date) ([]model.Bar, int, error) {
	data, err := os.ReadFile(s.Path(market, p, code))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	if len(data)%sourceRecordSize != 0 {
		return nil, 0, fmt.Errorf("source %s/%s: truncated record", market, code)
	}

	bars := make([]model.Bar, 0, len(data)/sourceRecordSize)
	skipped := 0
	for off := 0; off < len(data); off += sourceRecordSize {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		b, ok := decodeSourceRecord(data[off : off+sourceRecordSize])
		if !ok {
			// Malformed rows (zero or inverted prices) are dropped the
			// way the original importer drops them.
			continue
		}
		if cutoff != 0 && b.Datetime.Date() >= cutoff {
			skipped++
			continue
		}
		bars = append(bars, b)
	}
	return bars, skipped, nil
}

// decodeSourceRecord validates and rescales one record. Records with a
// zero price or high/low not bracketing open/close are rejected.
func decodeSourceRecord(buf []byte) (model.Bar, bool) {
	dt := model.Datetime(binary.LittleEndian.Uint64(buf[0:]))
	open := int64(binary.LittleEndian.Uint32(buf[8:]))
	high := int64(binary.LittleEndian.Uint32(buf[12:]))
	low := int64(binary.LittleEndian.Uint32(buf[16:]))
	closep := int64(binary.LittleEndian.Uint32(buf[20:]))
	volume := int64(binary.LittleEndian.Uint32(buf[24:]))
	amount := int64(binary.LittleEndian.Uint32(buf[28:]))

	if open == 0 || high == 0 || low == 0 || closep == 0 {
		return model.Bar{}, false
	}
	if high < open || open < low || high < closep || closep < low {
		return model.Bar{}, false
	}
	// Source prices are hundredths; the store keeps thousandths.
	const rescale = model.PriceScale / 100
	return model.Bar{
		Datetime: dt,
		Open:     model.Price(open * rescale),
		High:     model.Price(high * rescale),
		Low:      model.Price(low * rescale),
		Close:    model.Price(closep * rescale),
		Volume:   volume,
		Amount:   amount,
	}, true
}

// EncodeSourceRecord is the inverse of the record decoder, used by tools
// and tests that fabricate source files.
func EncodeSourceRecord(buf []byte, b model.Bar) {
	const rescale = model.PriceScale / 100
	binary.LittleEndian.PutUint64(buf[0:], uint64(b.Datetime))
	binary.LittleEndian.PutUint32(buf[8:], uint32(int64(b.Open)/rescale))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int64(b.High)/rescale))
	binary.LittleEndian.PutUint32(buf[16:], uint32(int64(b.Low)/rescale))
	binary.LittleEndian.PutUint32(buf[20:], uint32(int64(b.Close)/rescale))
	binary.LittleEndian.PutUint32(buf[24:], uint32(b.Volume))
	binary.LittleEndian.PutUint32(buf[28:], uint32(b.Amount))
}
