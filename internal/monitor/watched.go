package monitor

import (
	"errors"
	"strconv"
	"time"

	"github.com/danmuck/shogunctl/internal/client"
	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/shogun"
)

type fieldCache struct {
	known bool
	value string
}

// watchedFields caches the last polled value per field. Caches start
// unknown each connection so the first poll primes them without events.
type watchedFields struct {
	recordingKnown bool
	recording      bool
	name           fieldCache
	description    fieldCache
	folder         fieldCache
}

// watch polls the watched fields until the connection dies, a reconnect is
// forced, or the monitor stops.
func (m *Monitor) watch(cli *client.Client, capture *shogun.CaptureService) error {
	// A force signal raised while dialing is satisfied by the connection
	// just made.
	select {
	case <-m.reconnectCh:
	default:
	}

	if err := m.pollOnce(capture); err != nil {
		return err
	}
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case <-m.reconnectCh:
			return errReconnectForced
		case <-cli.Done():
			if err := cli.Err(); err != nil {
				return err
			}
			return client.ErrNotConnected
		case <-ticker.C:
			if err := m.pollOnce(capture); err != nil {
				return err
			}
		}
	}
}

// pollOnce reads every watched field. Remote refusals and per-command
// timeouts skip the field and keep the connection; anything else kills it.
func (m *Monitor) pollOnce(capture *shogun.CaptureService) error {
	state, err := capture.LatestCaptureState()
	if skip, fatal := pollSkip(shogun.CmdLatestCaptureState, err); fatal != nil {
		return fatal
	} else if !skip {
		m.observeRecording(state.Recording())
	}

	name, err := capture.CaptureName()
	if skip, fatal := pollSkip(shogun.CmdCaptureName, err); fatal != nil {
		return fatal
	} else if !skip {
		m.observeField(FieldCaptureName, name)
	}

	description, err := capture.CaptureDescription()
	if skip, fatal := pollSkip(shogun.CmdCaptureDescription, err); fatal != nil {
		return fatal
	} else if !skip {
		m.observeField(FieldCaptureDescription, description)
	}

	folder, err := capture.CaptureFolder()
	if skip, fatal := pollSkip(shogun.CmdCaptureFolder, err); fatal != nil {
		return fatal
	} else if !skip {
		m.observeField(FieldCaptureFolder, folder)
	}
	return nil
}

// pollSkip classifies a poll read error: remote refusals and timeouts skip
// the field, every other error is fatal to the connection.
func pollSkip(command string, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	var remote *client.RemoteError
	if errors.As(err, &remote) {
		logs.Warnf("monitor.Monitor.pollOnce refused command=%s code=%s", command, remote.Code)
		return true, nil
	}
	if errors.Is(err, client.ErrTimeout) {
		logs.Warnf("monitor.Monitor.pollOnce timeout command=%s", command)
		return true, nil
	}
	return true, err
}

func (m *Monitor) observeRecording(recording bool) {
	m.mu.Lock()
	known := m.fields.recordingKnown
	prev := m.fields.recording
	m.fields.recordingKnown = true
	m.fields.recording = recording
	m.status.Recording = recording
	m.mu.Unlock()

	if !known || prev == recording {
		return
	}
	kind := EventRecordingStopped
	if recording {
		kind = EventRecordingStarted
	}
	logs.Infof("monitor.Monitor.observeRecording recording=%v", recording)
	m.emit(Event{Kind: kind, Field: FieldRecording, Value: strconv.FormatBool(recording), At: time.Now()})
}

func (m *Monitor) observeField(field, value string) {
	m.mu.Lock()
	cache := m.cacheFor(field)
	known := cache.known
	prev := cache.value
	cache.known = true
	cache.value = value
	m.applyStatusField(field, value)
	m.mu.Unlock()

	if !known || prev == value {
		return
	}
	logs.Infof("monitor.Monitor.observeField field=%s value=%q", field, value)
	m.emit(Event{Kind: EventFieldChanged, Field: field, Value: value, At: time.Now()})
}

func (m *Monitor) cacheFor(field string) *fieldCache {
	switch field {
	case FieldCaptureName:
		return &m.fields.name
	case FieldCaptureDescription:
		return &m.fields.description
	default:
		return &m.fields.folder
	}
}

func (m *Monitor) applyStatusField(field, value string) {
	switch field {
	case FieldCaptureName:
		m.status.CaptureName = value
	case FieldCaptureDescription:
		m.status.CaptureDescription = value
	case FieldCaptureFolder:
		m.status.CaptureFolder = value
	}
}
