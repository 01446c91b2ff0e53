package rtspclient

import (
	"errors"
	"fmt"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/wh8199/log"

	"github.com/camgrab/rtspclient/pkg/format"
	"github.com/camgrab/rtspclient/pkg/format/rtph264"
	"github.com/camgrab/rtspclient/pkg/format/rtph265"
	"github.com/camgrab/rtspclient/pkg/format/rtpmjpeg"
	"github.com/camgrab/rtspclient/pkg/format/rtpmpeg4audiogeneric"
	"github.com/camgrab/rtspclient/pkg/rtcpreceiver"
)

// benign decoder conditions that must not be reported
func isBenignDecodeError(err error) bool {
	return errors.Is(err, rtph264.ErrMorePacketsNeeded) ||
		errors.Is(err, rtph264.ErrNonStartingPacketAndNoPrevious) ||
		errors.Is(err, rtph265.ErrMorePacketsNeeded) ||
		errors.Is(err, rtph265.ErrNonStartingPacketAndNoPrevious) ||
		errors.Is(err, rtpmjpeg.ErrMorePacketsNeeded) ||
		errors.Is(err, rtpmjpeg.ErrNonStartingPacketAndNoPrevious) ||
		errors.Is(err, rtpmpeg4audiogeneric.ErrMorePacketsNeeded)
}

// newDecodeFunc returns a function that extracts zero or more frames
// from a RTP packet, or false when the format has no depayloader.
func newDecodeFunc(forma format.Format) (func(*rtp.Packet) ([]*Frame, error), bool) {
	switch f := forma.(type) {
	case *format.H264:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			nalus, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			return []*Frame{{Parts: nalus}}, nil
		}, true

	case *format.H265:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			nalus, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			return []*Frame{{Parts: nalus}}, nil
		}, true

	case *format.MJPEG:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			image, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			return []*Frame{{Parts: [][]byte{image}}}, nil
		}, true

	case *format.MPEGTS:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			burst, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			return []*Frame{{Parts: [][]byte{burst}}}, nil
		}, true

	case *format.G711:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			frame, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			return []*Frame{{Parts: [][]byte{frame}}}, nil
		}, true

	case *format.MPEG4Audio:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			aus, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			// one frame per AU
			frames := make([]*Frame, len(aus))
			for i, au := range aus {
				frames[i] = &Frame{Parts: [][]byte{au}}
			}
			return frames, nil
		}, true

	case *format.AMR:
		d, err := f.CreateDecoder()
		if err != nil {
			return nil, false
		}
		return func(pkt *rtp.Packet) ([]*Frame, error) {
			speechFrames, err := d.Decode(pkt)
			if err != nil {
				return nil, err
			}
			frames := make([]*Frame, len(speechFrames))
			for i, sf := range speechFrames {
				frames[i] = &Frame{Parts: [][]byte{sf}}
			}
			return frames, nil
		}, true
	}

	return nil, false
}

// streamConfigs extracts the codec configuration advertised
// by the stream description.
func streamConfigs(forma format.Format) [][]byte {
	switch f := forma.(type) {
	case *format.H264:
		if f.SPS != nil {
			return [][]byte{f.SPS, f.PPS}
		}

	case *format.H265:
		var ret [][]byte
		if f.VPS != nil {
			ret = append(ret, f.VPS)
		}
		if f.SPS != nil {
			ret = append(ret, f.SPS)
		}
		if f.PPS != nil {
			ret = append(ret, f.PPS)
		}
		return ret

	case *format.MPEG4Audio:
		enc, err := f.Config.Marshal()
		if err == nil {
			return [][]byte{enc}
		}
	}

	return nil
}

type clientFormat struct {
	cm     *clientMedia
	format format.Format

	decode       func(*rtp.Packet) ([]*Frame, error)
	rtcpReceiver *rtcpreceiver.RTCPReceiver
	onFrame      func(*Frame)
}

func (cf *clientFormat) initialize() error {
	decode, ok := newDecodeFunc(cf.format)
	if !ok {
		return fmt.Errorf("no depayloader for codec %s", cf.format.Codec())
	}
	cf.decode = decode

	cf.rtcpReceiver = &rtcpreceiver.RTCPReceiver{
		ClockRate: cf.format.ClockRate(),
		WritePacketRTCP: func(pkt rtcp.Packet) {
			err := cf.cm.writePacketRTCP(pkt)
			if err != nil {
				log.Debug("unable to write receiver report: ", err)
			}
		},
	}
	return cf.rtcpReceiver.Initialize()
}

func (cf *clientFormat) readPacketRTP(pkt *rtp.Packet) {
	if cf.rtcpReceiver.ProcessPacket(pkt) {
		log.Debug("sequence number discontinuity on stream ", cf.format.Codec())
	}

	frames, err := cf.decode(pkt)
	if err != nil {
		if !isBenignDecodeError(err) {
			log.Debug("discarding RTP packet: ", err)
			cf.cm.c.OnDecodeError(err)
		}
		return
	}

	for _, frame := range frames {
		frame.RTPTime = pkt.Timestamp
		frame.NTP, _ = cf.rtcpReceiver.PacketNTP(pkt.Timestamp)
		cf.onFrame(frame)
	}
}
