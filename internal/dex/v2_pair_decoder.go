package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swappiIndexer/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Factory, when set, is the only accepted emitter of PairCreated.
	Factory   common.Address
	Topic0Map map[string]string
}

// V2PairDecoder decodes Uniswap V2 style factory and pair events.
type V2PairDecoder struct {
	factoryABI  abi.ABI
	pairABI     abi.ABI
	factory     common.Address
	topicToName map[string]string
}

// NewV2PairDecoder builds a V2 decoder.
func NewV2PairDecoder(cfg DecoderConfig) (*V2PairDecoder, error) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return nil, err
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(factoryABI.Events[model.EventPairCreated].ID.Hex()): model.EventPairCreated,
	}
	for _, name := range []string{model.EventMint, model.EventBurn, model.EventSwap, model.EventSync, model.EventTransfer} {
		topicToName[strings.ToLower(pairABI.Events[name].ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &V2PairDecoder{
		factoryABI:  factoryABI,
		pairABI:     pairABI,
		factory:     cfg.Factory,
		topicToName: topicToName,
	}, nil
}

// Topics returns the topic0 hashes the decoder understands.
func (d *V2PairDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *V2PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *V2PairDecoder) Decode(log model.LogRecord, _ DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventPairCreated:
		emitter := common.HexToAddress(log.Address)
		if d.factory != (common.Address{}) && emitter != d.factory {
			return nil, fmt.Errorf("pair created by unknown factory %s", log.Address)
		}
		decoded, err = d.decodePairCreated(log)
	case model.EventMint:
		decoded, err = d.decodeMint(log)
	case model.EventBurn:
		decoded, err = d.decodeBurn(log)
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventSync:
		decoded, err = d.decodeSync(log)
	case model.EventTransfer:
		decoded, err = d.decodeTransfer(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "paircreated":
		return model.EventPairCreated
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	case "swap":
		return model.EventSwap
	case "sync":
		return model.EventSync
	case "transfer":
		return model.EventTransfer
	default:
		return ""
	}
}

func (d *V2PairDecoder) decodePairCreated(log model.LogRecord) (model.PairCreatedEventData, error) {
	if err := requireTopics(log, 3); err != nil {
		return model.PairCreatedEventData{}, err
	}
	values, err := unpackData(d.factoryABI.Events[model.EventPairCreated], log.Data)
	if err != nil {
		return model.PairCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.PairCreatedEventData{}, fmt.Errorf("pair created data size %d", len(values))
	}
	pair, ok := values[0].(common.Address)
	if !ok {
		return model.PairCreatedEventData{}, fmt.Errorf("pair: unexpected type %T", values[0])
	}
	index, err := bigString(values[1])
	if err != nil {
		return model.PairCreatedEventData{}, fmt.Errorf("pair index: %w", err)
	}
	return model.PairCreatedEventData{
		Token0:    topicAddress(log.Topics[1]),
		Token1:    topicAddress(log.Topics[2]),
		Pair:      pair.Hex(),
		PairIndex: index,
	}, nil
}

func (d *V2PairDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	if err := requireTopics(log, 2); err != nil {
		return model.MintEventData{}, err
	}
	amounts, err := d.unpackAmounts(model.EventMint, log.Data, 2)
	if err != nil {
		return model.MintEventData{}, err
	}
	return model.MintEventData{
		Sender:  topicAddress(log.Topics[1]),
		Amount0: amounts[0],
		Amount1: amounts[1],
	}, nil
}

func (d *V2PairDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	if err := requireTopics(log, 3); err != nil {
		return model.BurnEventData{}, err
	}
	amounts, err := d.unpackAmounts(model.EventBurn, log.Data, 2)
	if err != nil {
		return model.BurnEventData{}, err
	}
	return model.BurnEventData{
		Sender:  topicAddress(log.Topics[1]),
		Amount0: amounts[0],
		Amount1: amounts[1],
		To:      topicAddress(log.Topics[2]),
	}, nil
}

func (d *V2PairDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	if err := requireTopics(log, 3); err != nil {
		return model.SwapEventData{}, err
	}
	amounts, err := d.unpackAmounts(model.EventSwap, log.Data, 4)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Sender:     topicAddress(log.Topics[1]),
		Amount0In:  amounts[0],
		Amount1In:  amounts[1],
		Amount0Out: amounts[2],
		Amount1Out: amounts[3],
		To:         topicAddress(log.Topics[2]),
	}, nil
}

func (d *V2PairDecoder) decodeSync(log model.LogRecord) (model.SyncEventData, error) {
	amounts, err := d.unpackAmounts(model.EventSync, log.Data, 2)
	if err != nil {
		return model.SyncEventData{}, err
	}
	return model.SyncEventData{Reserve0: amounts[0], Reserve1: amounts[1]}, nil
}

func (d *V2PairDecoder) decodeTransfer(log model.LogRecord) (model.TransferEventData, error) {
	if err := requireTopics(log, 3); err != nil {
		return model.TransferEventData{}, err
	}
	amounts, err := d.unpackAmounts(model.EventTransfer, log.Data, 1)
	if err != nil {
		return model.TransferEventData{}, err
	}
	return model.TransferEventData{
		From:  topicAddress(log.Topics[1]),
		To:    topicAddress(log.Topics[2]),
		Value: amounts[0],
	}, nil
}

func (d *V2PairDecoder) unpackAmounts(event string, data string, want int) ([]string, error) {
	values, err := unpackData(d.pairABI.Events[event], data)
	if err != nil {
		return nil, err
	}
	if len(values) != want {
		return nil, fmt.Errorf("%s data size %d, want %d", strings.ToLower(event), len(values), want)
	}
	out := make([]string, 0, want)
	for i, value := range values {
		text, err := bigString(value)
		if err != nil {
			return nil, fmt.Errorf("%s field %d: %w", strings.ToLower(event), i, err)
		}
		out = append(out, text)
	}
	return out, nil
}

func unpackData(event abi.Event, data string) ([]interface{}, error) {
	raw, err := hexutil.Decode(normalizeHex(data))
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", strings.ToLower(event.Name), err)
	}
	return values, nil
}

func requireTopics(log model.LogRecord, n int) error {
	if len(log.Topics) < n {
		return fmt.Errorf("expected %d topics, got %d", n, len(log.Topics))
	}
	return nil
}

func topicAddress(topic string) string {
	return common.BytesToAddress(common.HexToHash(topic).Bytes()).Hex()
}

func bigString(value interface{}) (string, error) {
	switch v := value.(type) {
	case *big.Int:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported int type %T", value)
	}
}

func normalizeHex(data string) string {
	if data == "" {
		return "0x"
	}
	if !strings.HasPrefix(data, "0x") && !strings.HasPrefix(data, "0X") {
		return "0x" + data
	}
	return data
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0]
	}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw: &model.RawLogRef{
			Topic0: topic0,
			Data:   log.Data,
		},
	}
}
