package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/yourorg/market-data-service/internal/model"
)

// Wire schema of one quote message, little-endian:
//
//	market   8 bytes, NUL-padded
//	code    16 bytes, NUL-padded
//	datetime u64 (YYYYMMDDHHMM)
//	open/high/low/close u32 fixed-point thousandths
//	volume   u64
//	amount   u64
//	bid count u8, ask count u8
//	levels: count x (price u32, volume u64) bids first, then asks
const (
	quoteHeaderSize = 8 + 16 + 8 + 16 + 8 + 8 + 2
	quoteLevelSize  = 12
	maxBookLevels   = 10
)

// Level is one side of the top-of-book ladder.
type Level struct {
	Price  model.Price
	Volume int64
}

// Quote is one decoded tick/quote message.
type Quote struct {
	Market   string
	Code     string
	Datetime model.Datetime
	Open     model.Price
	High     model.Price
	Low      model.Price
	Close    model.Price
	Volume   int64
	Amount   int64
	Bids     []Level
	Asks     []Level
}

// Bar converts the quote into the minute bar amendment it represents.
func (q Quote) Bar() model.Bar {
	return model.Bar{
		Datetime: q.Datetime,
		Open:     q.Open,
		High:     q.High,
		Low:      q.Low,
		Close:    q.Close,
		Volume:   q.Volume,
		Amount:   q.Amount,
	}
}

// Side classifies the trade against the top of book.
func (q Quote) Side() model.TickSide {
	if len(q.Asks) > 0 && q.Close >= q.Asks[0].Price {
		return model.SideBuy
	}
	if len(q.Bids) > 0 && q.Close <= q.Bids[0].Price {
		return model.SideSell
	}
	return model.SideAuction
}

func fixedString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

// DecodeQuote parses one wire message. Errors here are non-fatal to the
// pipeline: the message is dropped and counted.
func DecodeQuote(buf []byte) (Quote, error) {
	if len(buf) < quoteHeaderSize {
		return Quote{}, fmt.Errorf("quote message too short: %d bytes", len(buf))
	}
	q := Quote{
		Market:   fixedString(buf[0:8]),
		Code:     fixedString(buf[8:24]),
		Datetime: model.Datetime(binary.LittleEndian.Uint64(buf[24:])),
		Open:     model.Price(binary.LittleEndian.Uint32(buf[32:])),
		High:     model.Price(binary.LittleEndian.Uint32(buf[36:])),
		Low:      model.Price(binary.LittleEndian.Uint32(buf[40:])),
		Close:    model.Price(binary.LittleEndian.Uint32(buf[44:])),
		Volume:   int64(binary.LittleEndian.Uint64(buf[48:])),
		Amount:   int64(binary.LittleEndian.Uint64(buf[56:])),
	}
	if q.Market == "" || q.Code == "" || q.Datetime == 0 {
		return Quote{}, fmt.Errorf("quote message missing identity")
	}
	nbid, nask := int(buf[64]), int(buf[65])
	if nbid > maxBookLevels || nask > maxBookLevels {
		return Quote{}, fmt.Errorf("quote book depth %d/%d out of range", nbid, nask)
	}
	want := quoteHeaderSize + (nbid+nask)*quoteLevelSize
	if len(buf) < want {
		return Quote{}, fmt.Errorf("quote message truncated: %d < %d bytes", len(buf), want)
	}
	off := quoteHeaderSize
	readLevels := func(n int) []Level {
		levels := make([]Level, 0, n)
		for i := 0; i < n; i++ {
			levels = append(levels, Level{
				Price:  model.Price(binary.LittleEndian.Uint32(buf[off:])),
				Volume: int64(binary.LittleEndian.Uint64(buf[off+4:])),
			})
			off += quoteLevelSize
		}
		return levels
	}
	q.Bids = readLevels(nbid)
	q.Asks = readLevels(nask)
	return q, nil
}

// EncodeQuote is the wire inverse, used by feed tools and tests.
func EncodeQuote(q Quote) []byte {
	buf := make([]byte, quoteHeaderSize+(len(q.Bids)+len(q.Asks))*quoteLevelSize)
	copy(buf[0:8], q.Market)
	copy(buf[8:24], q.Code)
	binary.LittleEndian.PutUint64(buf[24:], uint64(q.Datetime))
	binary.LittleEndian.PutUint32(buf[32:], uint32(q.Open))
	binary.LittleEndian.PutUint32(buf[36:], uint32(q.High))
	binary.LittleEndian.PutUint32(buf[40:], uint32(q.Low))
	binary.LittleEndian.PutUint32(buf[44:], uint32(q.Close))
	binary.LittleEndian.PutUint64(buf[48:], uint64(q.Volume))
	binary.LittleEndian.PutUint64(buf[56:], uint64(q.Amount))
	buf[64] = byte(len(q.Bids))
	buf[65] = byte(len(q.Asks))
	off := quoteHeaderSize
	for _, lv := range append(append([]Level{}, q.Bids...), q.Asks...) {
		binary.LittleEndian.PutUint32(buf[off:], uint32(lv.Price))
		binary.LittleEndian.PutUint64(buf[off+4:], uint64(lv.Volume))
		off += quoteLevelSize
	}
	return buf
}
