package series

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/yourorg/market-data-service/internal/model"
)

// On-disk layout: fixed-size little-endian records in append order, one
// bar file per (symbol, base period), one tick file and one day-index
// file per symbol, one index file per derived period. The live bar is
// amended by overwriting the final record in place.
const (
	barRecordSize   = 56
	tickRecordSize  = 32
	indexRecordSize = 16
)

func encodeBar(buf []byte, b model.Bar) {
	binary.LittleEndian.PutUint64(buf[0:], uint64(b.Datetime))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b.Open))
	binary.LittleEndian.PutUint64(buf[16:], uint64(b.High))
	binary.LittleEndian.PutUint64(buf[24:], uint64(b.Low))
	binary.LittleEndian.PutUint64(buf[32:], uint64(b.Close))
	binary.LittleEndian.PutUint64(buf[40:], uint64(b.Volume))
	binary.LittleEndian.PutUint64(buf[48:], uint64(b.Amount))
}

func decodeBar(buf []byte) model.Bar {
	return model.Bar{
		Datetime: model.Datetime(binary.LittleEndian.Uint64(buf[0:])),
		Open:     model.Price(binary.LittleEndian.Uint64(buf[8:])),
		High:     model.Price(binary.LittleEndian.Uint64(buf[16:])),
		Low:      model.Price(binary.LittleEndian.Uint64(buf[24:])),
		Close:    model.Price(binary.LittleEndian.Uint64(buf[32:])),
		Volume:   int64(binary.LittleEndian.Uint64(buf[40:])),
		Amount:   int64(binary.LittleEndian.Uint64(buf[48:])),
	}
}

func encodeTick(buf []byte, t model.Tick) {
	binary.LittleEndian.PutUint64(buf[0:], uint64(t.Datetime))
	binary.LittleEndian.PutUint64(buf[8:], uint64(t.Price))
	binary.LittleEndian.PutUint64(buf[16:], uint64(t.Volume))
	buf[24] = byte(t.Side)
	for i := 25; i < tickRecordSize; i++ {
		buf[i] = 0
	}
}

func decodeTick(buf []byte) model.Tick {
	return model.Tick{
		Datetime: model.Datetime(binary.LittleEndian.Uint64(buf[0:])),
		Price:    model.Price(binary.LittleEndian.Uint64(buf[8:])),
		Volume:   int64(binary.LittleEndian.Uint64(buf[16:])),
		Side:     model.TickSide(buf[24]),
	}
}

func readBarFile(path string) ([]model.Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%barRecordSize != 0 {
		return nil, fmt.Errorf("bar file %s: truncated record", path)
	}
	bars := make([]model.Bar, 0, len(data)/barRecordSize)
	for off := 0; off < len(data); off += barRecordSize {
		bars = append(bars, decodeBar(data[off:off+barRecordSize]))
	}
	return bars, nil
}

func readTickFile(path string) ([]model.Tick, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%tickRecordSize != 0 {
		return nil, fmt.Errorf("tick file %s: truncated record", path)
	}
	ticks := make([]model.Tick, 0, len(data)/tickRecordSize)
	for off := 0; off < len(data); off += tickRecordSize {
		ticks = append(ticks, decodeTick(data[off:off+tickRecordSize]))
	}
	return ticks, nil
}

// writeRecordAt overwrites or extends a record file at a fixed position.
func writeRecordAt(f *os.File, buf []byte, pos int64) error {
	_, err := f.WriteAt(buf, pos*int64(len(buf)))
	return err
}

// writeIndexFile rewrites an index file wholesale. Index files are small
// (one entry per derived period or trading day) and recomputable, so a
// full rewrite at flush is the simplest durable form.
func writeIndexFile(path string, entries []model.IndexEntry) error {
	buf := make([]byte, len(entries)*indexRecordSize)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(buf[i*indexRecordSize:], uint64(e.Datetime))
		binary.LittleEndian.PutUint64(buf[i*indexRecordSize+8:], uint64(e.Start))
	}
	return os.WriteFile(path, buf, 0o644)
}

func writeDayIndexFile(path string, entries []model.DayIndexEntry) error {
	buf := make([]byte, len(entries)*indexRecordSize)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(buf[i*indexRecordSize:], uint64(e.Date))
		binary.LittleEndian.PutUint64(buf[i*indexRecordSize+8:], uint64(e.Start))
	}
	return os.WriteFile(path, buf, 0o644)
}

func openRecordFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
}
