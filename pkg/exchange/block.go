package exchange

import (
	"bytes"
	"fmt"

	"github.com/samsamfire/golwm2m/pkg/coap"
)

// BlockContext drives a Block1 (request body upload) or Block2 (response
// body download) sequence across several exchanges, the CoAP analogue of
// the teacher stack's blockSequenceNb/blockSize bookkeeping in
// SDOClient's block-transfer states (pkg/sdo/client.go). Exactly one of
// Block1/Block2 is active at a time per RFC 7959.
type BlockContext struct {
	IsBlock1 bool
	SZX      uint8
	Num      uint32
	body     *bytes.Buffer // accumulated reassembly buffer for a download
	etag     []byte
}

// NewBlock2Download starts a Block2 GET continuation with the server's
// chosen block size szx.
func NewBlock2Download(szx uint8) *BlockContext {
	return &BlockContext{SZX: szx, body: &bytes.Buffer{}}
}

// NewBlock1Upload starts a Block1 PUT/POST continuation that will stream
// payload in szx-sized chunks.
func NewBlock1Upload(szx uint8) *BlockContext {
	return &BlockContext{IsBlock1: true, SZX: szx}
}

// ApplyBlock2Response folds one Block2 response into the reassembly
// buffer and reports whether more blocks remain. It validates the ETag
// across blocks (spec §4.4's block-integrity requirement), since LwM2M
// uses ETag rather than a running CRC for this check.
func (b *BlockContext) ApplyBlock2Response(resp *coap.Message) (more bool, err error) {
	blk, ok := resp.Options.Block2()
	if !ok {
		return false, fmt.Errorf("exchange: block2 continuation missing Block2 option")
	}
	if et, ok := resp.Options.ETag(); ok {
		if b.etag != nil && !bytes.Equal(b.etag, et) {
			return false, fmt.Errorf("exchange: block2 ETag changed mid-transfer, resource modified concurrently")
		}
		b.etag = et
	}
	b.body.Write(resp.Payload)
	b.Num = blk.Num + 1
	b.SZX = blk.SZX
	return blk.M, nil
}

// NextBlock2Request builds the follow-up GET for the next block.
func (b *BlockContext) NextBlock2Request(base *coap.Message) *coap.Message {
	req := *base
	req.Options = append(coap.OptionSet(nil), base.Options...)
	req.Options.SetBlock2(coap.Block{Num: b.Num, M: false, SZX: b.SZX})
	return &req
}

// Body returns the reassembled payload once the final block has arrived.
func (b *BlockContext) Body() []byte { return b.body.Bytes() }

// NextBlock1Request slices payload's Num'th block and builds the request
// carrying it, setting M according to whether more blocks follow.
func (b *BlockContext) NextBlock1Request(base *coap.Message, payload []byte) *coap.Message {
	size := coap.Block{SZX: b.SZX}.Size()
	start := int(b.Num) * size
	end := start + size
	more := end < len(payload)
	if end > len(payload) {
		end = len(payload)
	}
	req := *base
	req.Options = append(coap.OptionSet(nil), base.Options...)
	req.Options.SetBlock1(coap.Block{Num: b.Num, M: more, SZX: b.SZX})
	req.Payload = payload[start:end]
	return &req
}

// AdvanceBlock1 moves to the next block after a successful 2.31 Continue.
func (b *BlockContext) AdvanceBlock1() { b.Num++ }
