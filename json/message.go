package json

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/llmrb/llm"
)

// MarshalMessages serializes a conversation log in v1 envelope format.
func MarshalMessages(msgs []llm.Message) ([]byte, error) {
	env := envelope{
		Version:  1,
		Messages: make([]messageDTO, len(msgs)),
	}
	for i, msg := range msgs {
		dto, err := marshalMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		env.Messages[i] = dto
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalMessages deserializes a conversation log from v1 envelope
// format.
func UnmarshalMessages(data []byte) ([]llm.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]llm.Message, len(env.Messages))
	for i, dto := range env.Messages {
		msg, err := unmarshalMessage(dto)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// Save writes a conversation log to a JSON file, creating parent
// directories as needed. The write is atomic via rename.
func Save(path string, msgs []llm.Message) error {
	data, err := MarshalMessages(msgs)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a conversation log from a JSON file.
func Load(path string) ([]llm.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalMessages(data)
}

func marshalMessage(msg llm.Message) (messageDTO, error) {
	blocks, err := marshalContentBlocks(msg.Content)
	if err != nil {
		return messageDTO{}, err
	}
	return messageDTO{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   blocks,
		Extra:     marshalExtra(msg.Extra),
		Timestamp: msg.Timestamp,
	}, nil
}

func unmarshalMessage(dto messageDTO) (llm.Message, error) {
	blocks, err := unmarshalContentBlocks(dto.Content)
	if err != nil {
		return llm.Message{}, err
	}
	return llm.Message{
		ID:        dto.ID,
		Role:      llm.Role(dto.Role),
		Content:   blocks,
		Extra:     unmarshalExtra(dto.Extra),
		Timestamp: dto.Timestamp,
	}, nil
}

func marshalExtra(extra llm.Extra) *extraDTO {
	if len(extra) == 0 {
		return nil
	}
	var dto extraDTO
	if u, ok := extra.Usage(); ok {
		dto.Usage = &usageDTO{
			InputTokens:     u.InputTokens,
			OutputTokens:    u.OutputTokens,
			CacheReadTokens: u.CacheReadTokens,
		}
	}
	if id, ok := extra.ResponseID(); ok {
		dto.ResponseID = &id
	}
	if m, ok := extra.Model(); ok {
		dto.Model = &m
	}
	return &dto
}

func unmarshalExtra(dto *extraDTO) llm.Extra {
	if dto == nil {
		return nil
	}
	extra := llm.Extra{}
	if dto.Usage != nil {
		extra = extra.WithUsage(llm.Usage{
			InputTokens:     dto.Usage.InputTokens,
			OutputTokens:    dto.Usage.OutputTokens,
			CacheReadTokens: dto.Usage.CacheReadTokens,
		})
	}
	if dto.ResponseID != nil {
		extra = extra.WithResponseID(*dto.ResponseID)
	}
	if dto.Model != nil {
		extra = extra.WithModel(*dto.Model)
	}
	return extra
}

func marshalContentBlocks(blocks []llm.ContentBlock) ([]contentBlock, error) {
	result := make([]contentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch bl := b.(type) {
		case llm.TextBlock:
			text := bl.Text
			result = append(result, contentBlock{Type: "text", Text: &text})
		case llm.FileBlock:
			data := base64.StdEncoding.EncodeToString(bl.Data)
			mime := bl.MimeType
			result = append(result, contentBlock{Type: "file", Data: &data, MimeType: &mime})
		case llm.ToolCallBlock:
			id, name := bl.ID, bl.Name
			args := bl.Arguments
			result = append(result, contentBlock{Type: "tool_call", ID: &id, Name: &name, Arguments: &args})
		case llm.ToolResultBlock:
			inner, err := marshalContentBlocks(bl.Content)
			if err != nil {
				return nil, err
			}
			callID, isErr := bl.ToolCallID, bl.IsError
			result = append(result, contentBlock{Type: "tool_result", ToolCallID: &callID, Content: inner, IsError: &isErr})
		default:
			return nil, fmt.Errorf("unknown content block type %T", b)
		}
	}
	return result, nil
}

func unmarshalContentBlocks(blocks []contentBlock) ([]llm.ContentBlock, error) {
	result := make([]llm.ContentBlock, 0, len(blocks))
	for _, dto := range blocks {
		switch dto.Type {
		case "text":
			var text string
			if dto.Text != nil {
				text = *dto.Text
			}
			result = append(result, llm.TextBlock{Text: text})
		case "file":
			var data []byte
			if dto.Data != nil {
				decoded, err := base64.StdEncoding.DecodeString(*dto.Data)
				if err != nil {
					return nil, fmt.Errorf("decode file data: %w", err)
				}
				data = decoded
			}
			var mime string
			if dto.MimeType != nil {
				mime = *dto.MimeType
			}
			result = append(result, llm.FileBlock{Data: data, MimeType: mime})
		case "tool_call":
			block := llm.ToolCallBlock{}
			if dto.ID != nil {
				block.ID = *dto.ID
			}
			if dto.Name != nil {
				block.Name = *dto.Name
			}
			if dto.Arguments != nil {
				block.Arguments = *dto.Arguments
			}
			result = append(result, block)
		case "tool_result":
			inner, err := unmarshalContentBlocks(dto.Content)
			if err != nil {
				return nil, err
			}
			block := llm.ToolResultBlock{Content: inner}
			if dto.ToolCallID != nil {
				block.ToolCallID = *dto.ToolCallID
			}
			if dto.IsError != nil {
				block.IsError = *dto.IsError
			}
			result = append(result, block)
		default:
			return nil, fmt.Errorf("unknown content block type %q", dto.Type)
		}
	}
	return result, nil
}
