package rtspclient

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/wh8199/log"

	"github.com/camgrab/rtspclient/pkg/base"
	"github.com/camgrab/rtspclient/pkg/description"
)

type clientMedia struct {
	c      *Client
	media  *description.Media
	format *clientFormat

	// TCP
	tcpChannel   int
	tcpRTCPFrame *base.InterleavedFrame

	// UDP
	udpRTPListener  *clientUDPListener
	udpRTCPListener *clientUDPListener
}

func (cm *clientMedia) initialize(medi *description.Media, cf *clientFormat) error {
	cm.media = medi
	cm.format = cf
	cf.cm = cm

	err := cf.initialize()
	if err != nil {
		return err
	}

	cf.onFrame = func(f *Frame) {
		if cm.media.Type == description.MediaTypeVideo {
			cm.c.OnVideoFrame(f)
		} else {
			cm.c.OnAudioFrame(f)
		}
	}

	return nil
}

func (cm *clientMedia) close() {
	if cm.udpRTPListener != nil {
		cm.udpRTPListener.close()
		cm.udpRTCPListener.close()
		cm.udpRTPListener = nil
		cm.udpRTCPListener = nil
	}
}

// start is idempotent: it is invoked on SETUP completion and again
// when playback resumes after a pause.
func (cm *clientMedia) start() {
	if cm.udpRTPListener != nil {
		if !cm.udpRTPListener.running {
			cm.udpRTPListener.readFunc = cm.readRTPUDP
			cm.udpRTCPListener.readFunc = cm.readRTCPUDP
			cm.udpRTPListener.start()
			cm.udpRTCPListener.start()
		}
	} else if cm.tcpRTCPFrame == nil {
		cm.tcpRTCPFrame = &base.InterleavedFrame{Channel: cm.tcpChannel + 1}
	}
}

func (cm *clientMedia) stop() {
	if cm.udpRTPListener != nil {
		cm.udpRTPListener.stop()
		cm.udpRTCPListener.stop()
	}
}

// readRTP handles a RTP payload, from an interleaved frame or a UDP packet.
func (cm *clientMedia) readRTP(payload []byte) {
	pkt := &rtp.Packet{}
	err := pkt.Unmarshal(payload)
	if err != nil {
		log.Debug("discarding malformed RTP packet: ", err)
		cm.c.OnDecodeError(err)
		return
	}

	if pkt.PayloadType != cm.format.format.PayloadType() {
		log.Debug("discarding RTP packet with unexpected payload type ", pkt.PayloadType)
		return
	}

	cm.format.readPacketRTP(pkt)
}

// readRTCP handles a RTCP compound payload.
func (cm *clientMedia) readRTCP(payload []byte) {
	if len(payload) > maxPacketSize {
		log.Debug("discarding oversized RTCP packet")
		return
	}

	packets, err := rtcp.Unmarshal(payload)
	if err != nil {
		log.Debug("discarding malformed RTCP packet: ", err)
		cm.c.OnDecodeError(err)
		return
	}

	for _, pkt := range packets {
		if sr, ok := pkt.(*rtcp.SenderReport); ok {
			cm.format.rtcpReceiver.ProcessSenderReport(sr)
		}
	}
}

func (cm *clientMedia) readRTPUDP(payload []byte) {
	if len(payload) == (udpMaxPayloadSize + 1) {
		log.Debug("RTP packet is too big to be read with UDP")
		return
	}
	cm.readRTP(payload)
}

func (cm *clientMedia) readRTCPUDP(payload []byte) {
	if len(payload) == (udpMaxPayloadSize + 1) {
		log.Debug("RTCP packet is too big to be read with UDP")
		return
	}
	cm.readRTCP(payload)
}

// writePacketRTCP sends a RTCP packet on the control channel.
func (cm *clientMedia) writePacketRTCP(pkt rtcp.Packet) error {
	byts, err := pkt.Marshal()
	if err != nil {
		return err
	}

	if cm.udpRTCPListener != nil {
		return cm.udpRTCPListener.write(byts)
	}

	cm.c.writeMutex.Lock()
	defer cm.c.writeMutex.Unlock()

	if cm.c.nconn == nil {
		return nil
	}

	cm.tcpRTCPFrame.Payload = byts
	cm.c.nconn.SetWriteDeadline(time.Now().Add(cm.c.WriteTimeout))
	return cm.c.conn.WriteInterleavedFrame(cm.tcpRTCPFrame, cm.c.tcpBuffer)
}
