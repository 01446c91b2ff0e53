// Package rtcpreceiver contains a utility to track sender reports and
// answer them with receiver reports.
package rtcpreceiver

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// seconds since 1st January 1900
// higher 32 bits are the integer part, lower 32 bits are the fractional part
func ntpTimeRTCPToGo(v uint64) time.Time {
	nano := int64((v>>32)*1000000000+(v&0xFFFFFFFF)*1000000000/(1<<32)) - 2208988800*1000000000
	return time.Unix(0, nano)
}

func randUint32() (uint32, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// RTCPReceiver tracks RTP packets and sender reports of a single
// stream, providing the wall clock of any RTP timestamp, and answers
// every sender report with an empty receiver report.
type RTCPReceiver struct {
	// clock rate of the stream.
	ClockRate int

	// invoked with the receiver report that answers each sender report.
	// may be nil.
	WritePacketRTCP func(rtcp.Packet)

	receiverSSRC uint32
	mutex        sync.RWMutex

	// data from RTP packets
	firstRTPPacketReceived bool
	lastSequenceNumber     uint16
	senderSSRC             uint32

	// data from RTCP packets
	firstSenderReportReceived bool
	lastSenderReportTimeNTP   uint64
	lastSenderReportTimeRTP   uint32
}

// Initialize initializes a RTCPReceiver.
func (rr *RTCPReceiver) Initialize() error {
	if rr.ClockRate == 0 {
		return fmt.Errorf("clock rate not provided")
	}

	var err error
	rr.receiverSSRC, err = randUint32()
	if err != nil {
		return err
	}

	return nil
}

// ProcessPacket extracts the needed data from RTP packets.
// It returns whether a sequence-number discontinuity was detected.
func (rr *RTCPReceiver) ProcessPacket(pkt *rtp.Packet) bool {
	rr.mutex.Lock()
	defer rr.mutex.Unlock()

	if !rr.firstRTPPacketReceived {
		rr.firstRTPPacketReceived = true
		rr.lastSequenceNumber = pkt.SequenceNumber
		rr.senderSSRC = pkt.SSRC
		return false
	}

	discontinuity := pkt.SequenceNumber != (rr.lastSequenceNumber + 1)
	rr.lastSequenceNumber = pkt.SequenceNumber
	return discontinuity
}

// ProcessSenderReport extracts the needed data from a RTCP sender report
// and answers it with an empty receiver report.
func (rr *RTCPReceiver) ProcessSenderReport(sr *rtcp.SenderReport) {
	rr.mutex.Lock()
	rr.firstSenderReportReceived = true
	rr.lastSenderReportTimeNTP = sr.NTPTime
	rr.lastSenderReportTimeRTP = sr.RTPTime
	rr.senderSSRC = sr.SSRC
	receiverSSRC := rr.receiverSSRC
	rr.mutex.Unlock()

	if rr.WritePacketRTCP != nil {
		// 8 bytes: V=2, P=0, RC=0, PT=201, length=1, sender SSRC
		rr.WritePacketRTCP(&rtcp.ReceiverReport{
			SSRC: receiverSSRC,
		})
	}
}

// PacketNTP returns the NTP (wall clock) timestamp of a packet with
// the given RTP timestamp. It returns false until a sender report
// has been received.
func (rr *RTCPReceiver) PacketNTP(ts uint32) (time.Time, bool) {
	rr.mutex.RLock()
	defer rr.mutex.RUnlock()

	if !rr.firstSenderReportReceived {
		return time.Time{}, false
	}

	timeDiff := int32(ts - rr.lastSenderReportTimeRTP)
	timeDiffGo := (time.Duration(timeDiff) * time.Second) / time.Duration(rr.ClockRate)

	return ntpTimeRTCPToGo(rr.lastSenderReportTimeNTP).Add(timeDiffGo), true
}

// SenderSSRC returns the SSRC of incoming RTP packets.
func (rr *RTCPReceiver) SenderSSRC() (uint32, bool) {
	rr.mutex.RLock()
	defer rr.mutex.RUnlock()
	return rr.senderSSRC, rr.firstRTPPacketReceived || rr.firstSenderReportReceived
}
