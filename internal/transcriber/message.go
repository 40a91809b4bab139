package transcriber

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Outbound message types.
const (
	typeSessionConfig   = "session_config"
	typeInputAudioChunk = "input_audio_chunk"
	typeCommit          = "commit"
)

// Inbound message types.
const (
	typeSessionStarted      = "session_started"
	typePartialTranscript   = "partial_transcript"
	typeCommittedTranscript = "committed_transcript"
	typeError               = "error"
)

// wireSampleRate is the only rate the service is sent.
const wireSampleRate = 16000

// SessionConfigMessage describes a session. The service reads the same
// settings from the URL query, so this is not sent on connect.
type SessionConfigMessage struct {
	MessageType             string   `json:"message_type"`
	SampleRate              int      `json:"sample_rate"`
	LanguageCode            string   `json:"language_code"`
	VADCommitStrategy       bool     `json:"vad_commit_strategy"`
	VADSilenceThresholdSecs *float64 `json:"vad_silence_threshold_secs,omitempty"`
	IncludeTimestamps       *bool    `json:"include_timestamps,omitempty"`
}

// NewSessionConfigMessage builds a session_config message. The silence
// threshold is only set when VAD is enabled.
func NewSessionConfigMessage(languageCode string, vadEnabled bool, vadThreshold float64) SessionConfigMessage {
	timestamps := true
	msg := SessionConfigMessage{
		MessageType:       typeSessionConfig,
		SampleRate:        wireSampleRate,
		LanguageCode:      languageCode,
		VADCommitStrategy: vadEnabled,
		IncludeTimestamps: &timestamps,
	}
	if vadEnabled {
		msg.VADSilenceThresholdSecs = &vadThreshold
	}
	return msg
}

// AudioChunkMessage carries base64 little-endian PCM.
type AudioChunkMessage struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

// NewAudioChunkMessage encodes samples as an input_audio_chunk.
func NewAudioChunkMessage(samples []int16, commit bool) AudioChunkMessage {
	return AudioChunkMessage{
		MessageType: typeInputAudioChunk,
		AudioBase64: base64.StdEncoding.EncodeToString(encodePCM(samples)),
		Commit:      commit,
		SampleRate:  wireSampleRate,
	}
}

// CommitMessage asks the service to finalize the current segment.
type CommitMessage struct {
	MessageType string `json:"message_type"`
}

// NewCommitMessage returns a standalone commit message.
func NewCommitMessage() CommitMessage {
	return CommitMessage{MessageType: typeCommit}
}

// encodePCM serializes samples as signed 16-bit little-endian bytes.
func encodePCM(samples []int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

// ServerMessage is one decoded inbound message. Exactly one of the typed
// fields is set, matching Type; Unknown messages carry only Type.
type ServerMessage struct {
	Type string

	SessionStarted *SessionStarted
	Partial        *Transcript
	Committed      *Transcript
	Error          *ErrorMessage
}

// IsUnknown reports whether the message type was not recognized.
func (m ServerMessage) IsUnknown() bool {
	return m.SessionStarted == nil && m.Partial == nil && m.Committed == nil && m.Error == nil
}

// SessionStarted is sent once the service accepted the connection.
type SessionStarted struct {
	SessionID string         `json:"session_id"`
	Config    *SessionConfig `json:"config,omitempty"`
}

// SessionConfig echoes the settings the service applied. Null strings decode
// to "".
type SessionConfig struct {
	SampleRate              int        `json:"sample_rate"`
	AudioFormat             NullString `json:"audio_format"`
	LanguageCode            NullString `json:"language_code"`
	ModelID                 NullString `json:"model_id"`
	VADCommitStrategy       bool       `json:"vad_commit_strategy"`
	VADSilenceThresholdSecs float64    `json:"vad_silence_threshold_secs"`
	IncludeTimestamps       bool       `json:"include_timestamps"`
}

// Transcript is the payload of partial and committed transcripts.
type Transcript struct {
	Text      NullString `json:"text"`
	Timestamp *float64   `json:"timestamp,omitempty"`
}

// ErrorMessage is an error reported by the service.
type ErrorMessage struct {
	Error NullString `json:"error"`
	Code  *string    `json:"code,omitempty"`
}

// NullString is a string that decodes JSON null as "".
type NullString string

func (n *NullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*n = ""
		return nil
	}
	*n = NullString(*s)
	return nil
}

// DecodeServerMessage decodes one text frame. Unrecognized message types are
// not an error.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var head struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ServerMessage{}, fmt.Errorf("failed to decode message: %w", err)
	}

	msg := ServerMessage{Type: head.MessageType}

	var target interface{}
	switch head.MessageType {
	case typeSessionStarted:
		msg.SessionStarted = &SessionStarted{}
		target = msg.SessionStarted
	case typePartialTranscript:
		msg.Partial = &Transcript{}
		target = msg.Partial
	case typeCommittedTranscript:
		msg.Committed = &Transcript{}
		target = msg.Committed
	case typeError:
		msg.Error = &ErrorMessage{}
		target = msg.Error
	default:
		return msg, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return ServerMessage{}, fmt.Errorf("failed to decode %s: %w", head.MessageType, err)
	}
	return msg, nil
}
