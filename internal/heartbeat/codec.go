// Package heartbeat implements the wire codec for device heartbeat
// messages: fixed-width little-endian integers, struct-order packing, no
// variable-width scalar encoding, length-prefixed container fields.
package heartbeat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
)

// SystemInfo is the per-heartbeat host-level telemetry snapshot.
type SystemInfo struct {
	CPUUsage    uint8
	MemoryUsage uint8
	DiskUsage   uint8
	NetworkRX   uint64
	NetworkTX   uint64
}

// DeviceInfo describes one physical GPU within a multi-GPU client.
type DeviceInfo struct {
	PodID      int32
	EngineType store.EngineType
	OSType     store.OSType
	MemtotalGB uint32
	GPUUtil    uint8
}

// Message is the fully decoded heartbeat, struct-order identical to the
// wire format in HeartbeatMessage.
type Message struct {
	ClientID         [16]byte
	SystemInfo       SystemInfo
	DeviceCount      uint32
	DeviceMemtotalGB uint32
	TotalTFLOPS      uint32
	DevicesInfo      []DeviceInfo
}

// Encode serializes a Message to its wire form. The encoding is symmetric
// and versionless: Decode(Encode(m)) reproduces m exactly.
func Encode(m Message) ([]byte, error) {
	buf := new(bytes.Buffer)

	if _, err := buf.Write(m.ClientID[:]); err != nil {
		return nil, err
	}

	if err := writeSystemInfo(buf, m.SystemInfo); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.LittleEndian, m.DeviceCount); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.DeviceMemtotalGB); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.TotalTFLOPS); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.LittleEndian, uint32(len(m.DevicesInfo))); err != nil {
		return nil, err
	}
	for _, d := range m.DevicesInfo {
		if err := writeDeviceInfo(buf, d); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a heartbeat payload. A malformed payload is a hard skip for
// the caller: the error is not recoverable by retrying the same bytes.
func Decode(data []byte) (Message, error) {
	r := bytes.NewReader(data)
	var m Message

	if _, err := r.Read(m.ClientID[:]); err != nil {
		return Message{}, fmt.Errorf("read client_id: %w", err)
	}

	si, err := readSystemInfo(r)
	if err != nil {
		return Message{}, fmt.Errorf("read system_info: %w", err)
	}
	m.SystemInfo = si

	if err := binary.Read(r, binary.LittleEndian, &m.DeviceCount); err != nil {
		return Message{}, fmt.Errorf("read device_count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.DeviceMemtotalGB); err != nil {
		return Message{}, fmt.Errorf("read device_memtotal_gb: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.TotalTFLOPS); err != nil {
		return Message{}, fmt.Errorf("read total_tflops: %w", err)
	}

	var devicesLen uint32
	if err := binary.Read(r, binary.LittleEndian, &devicesLen); err != nil {
		return Message{}, fmt.Errorf("read devices_info length: %w", err)
	}

	m.DevicesInfo = make([]DeviceInfo, 0, devicesLen)
	for i := uint32(0); i < devicesLen; i++ {
		d, err := readDeviceInfo(r)
		if err != nil {
			return Message{}, fmt.Errorf("read devices_info[%d]: %w", i, err)
		}
		m.DevicesInfo = append(m.DevicesInfo, d)
	}

	return m, nil
}

func writeSystemInfo(buf *bytes.Buffer, si SystemInfo) error {
	for _, v := range []interface{}{si.CPUUsage, si.MemoryUsage, si.DiskUsage, si.NetworkRX, si.NetworkTX} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readSystemInfo(r *bytes.Reader) (SystemInfo, error) {
	var si SystemInfo
	if err := binary.Read(r, binary.LittleEndian, &si.CPUUsage); err != nil {
		return si, err
	}
	if err := binary.Read(r, binary.LittleEndian, &si.MemoryUsage); err != nil {
		return si, err
	}
	if err := binary.Read(r, binary.LittleEndian, &si.DiskUsage); err != nil {
		return si, err
	}
	if err := binary.Read(r, binary.LittleEndian, &si.NetworkRX); err != nil {
		return si, err
	}
	if err := binary.Read(r, binary.LittleEndian, &si.NetworkTX); err != nil {
		return si, err
	}
	return si, nil
}

func writeDeviceInfo(buf *bytes.Buffer, d DeviceInfo) error {
	if err := binary.Write(buf, binary.LittleEndian, d.PodID); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, int16(d.EngineType)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, int16(d.OSType)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, d.MemtotalGB); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, d.GPUUtil)
}

func readDeviceInfo(r *bytes.Reader) (DeviceInfo, error) {
	var d DeviceInfo
	if err := binary.Read(r, binary.LittleEndian, &d.PodID); err != nil {
		return d, err
	}
	var engineType, osType int16
	if err := binary.Read(r, binary.LittleEndian, &engineType); err != nil {
		return d, err
	}
	d.EngineType = store.EngineType(engineType)
	if err := binary.Read(r, binary.LittleEndian, &osType); err != nil {
		return d, err
	}
	d.OSType = store.OSType(osType)
	if err := binary.Read(r, binary.LittleEndian, &d.MemtotalGB); err != nil {
		return d, err
	}
	if err := binary.Read(r, binary.LittleEndian, &d.GPUUtil); err != nil {
		return d, err
	}
	return d, nil
}
