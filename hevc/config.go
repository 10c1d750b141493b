package hevc

// DecoderConfig is the minimal decoder configuration a hardware video
// decoder needs before it can be fed any slice NAL units: the parameter
// sets themselves plus the resolution and codec string derived from the
// active SPS, per spec.md §4.2 ("decoder configuration handoff").
type DecoderConfig struct {
	VPS []byte
	SPS []byte
	PPS []byte

	Width  int
	Height int

	CodecString string

	Log2MaxPicOrderCntLsbMinus4 uint
}

// Ready reports whether all three parameter sets have been observed.
func (c DecoderConfig) Ready() bool {
	return len(c.VPS) > 0 && len(c.SPS) > 0 && len(c.PPS) > 0
}

// ConfigBuilder accumulates VPS/SPS/PPS NAL units seen while scanning a
// stream and produces a DecoderConfig once all three are present. It
// mirrors the incremental parameter-set tracking the teacher's demuxer
// does per access unit, generalized to HEVC's three parameter set types.
type ConfigBuilder struct {
	vps, sps, pps []byte
	spsInfo       SPSInfo
	haveSPSInfo   bool
}

// Observe inspects a NAL unit (payload including the 2-byte header, no
// start code) and records it if it is a VPS, SPS, or PPS. SPS NAL units
// are additionally parsed immediately so later slice header parsing can
// use Log2MaxPicOrderCntLsbMinus4 without re-parsing the SPS.
func (b *ConfigBuilder) Observe(nalType byte, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	switch nalType {
	case NALVPS:
		b.vps = cp
	case NALSPS:
		b.sps = cp
		info, err := ParseSPS(cp)
		if err != nil {
			return err
		}
		b.spsInfo = info
		b.haveSPSInfo = true
	case NALPPS:
		b.pps = cp
	}
	return nil
}

// Config returns the accumulated DecoderConfig. It is only meaningful
// once Ready reports true.
func (b *ConfigBuilder) Config() DecoderConfig {
	cfg := DecoderConfig{VPS: b.vps, SPS: b.sps, PPS: b.pps}
	if b.haveSPSInfo {
		cfg.Width = b.spsInfo.Width
		cfg.Height = b.spsInfo.Height
		cfg.CodecString = b.spsInfo.CodecString()
		cfg.Log2MaxPicOrderCntLsbMinus4 = b.spsInfo.Log2MaxPicOrderCntLsbMinus4
	}
	return cfg
}

// Ready reports whether a VPS, SPS, and PPS have all been observed.
func (b *ConfigBuilder) Ready() bool {
	return len(b.vps) > 0 && len(b.sps) > 0 && len(b.pps) > 0
}
