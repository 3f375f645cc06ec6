package frame

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rawbytedev/fcodec/pkg/dynamic"
	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

// Message is implemented by generated message types and by *dynamic.Value.
type Message interface {
	TemplateID() uint16
	Fingerprint() uint64
	EncodeTo(b *wire.Buffer, off int) (int, error)
	DecodeFrom(b *wire.Buffer, off int) (int, error)
}

// sizer is implemented by messages that know their encoded size up front.
type sizer interface {
	Size() int
}

// Factory returns an empty message to decode into.
type Factory func() Message

type registration struct {
	factory     Factory
	fingerprint uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger rejected frames are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics registers the frame counters with reg under namespace.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.namespace = namespace
		m.reg = reg
	}
}

// WithPool sets the pool encode buffers are taken from.
func WithPool(p *wire.Pool) Option {
	return func(m *Manager) { m.pool = p }
}

// Manager writes and reads frames for a set of registered templates. It is
// safe for concurrent use; registration takes a write lock, framing only a
// read lock.
type Manager struct {
	cfg       Config
	version   schema.Version
	log       *zap.Logger
	pool      *wire.Pool
	namespace string
	reg       prometheus.Registerer
	metrics   *metrics
	comp      *compressor

	mu        sync.RWMutex
	templates map[uint16]registration
}

// NewManager returns a Manager writing frames stamped with version.
func NewManager(version schema.Version, cfg Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		version:   version,
		log:       zap.NewNop(),
		templates: make(map[uint16]registration),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = wire.NewPool()
	}
	met, err := newMetrics(m.namespace, m.reg)
	if err != nil {
		return nil, errors.Wrap(err, "frame: register metrics")
	}
	m.metrics = met
	if m.comp, err = newCompressor(cfg.maxFrameSize()); err != nil {
		return nil, err
	}
	return m, nil
}

// Close releases the compression state.
func (m *Manager) Close() error {
	return m.comp.close()
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// Version is the schema version stamped on written frames.
func (m *Manager) Version() schema.Version { return m.version }

// Register adds the template of the messages f returns.
func (m *Manager) Register(f Factory) error {
	proto := f()
	id := proto.TemplateID()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; ok {
		return errors.Wrapf(ErrDuplicateTemplate, "template %d", id)
	}
	m.templates[id] = registration{factory: f, fingerprint: proto.Fingerprint()}
	m.log.Debug("registered template",
		zap.Uint16("template", id),
		zap.Uint64("fingerprint", proto.Fingerprint()),
	)
	return nil
}

// RegisterCodecs registers every message of a compiled schema. Decoded
// frames of these templates are *dynamic.Value.
func (m *Manager) RegisterCodecs(cs *dynamic.Codecs) error {
	for _, c := range cs.All() {
		if err := m.Register(func() Message { return c.New() }); err != nil {
			return errors.Wrapf(err, "message %s", c.Name())
		}
	}
	return nil
}

// Templates lists the registered template ids in ascending order.
func (m *Manager) Templates() []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint16, 0, len(m.templates))
	for id := range m.templates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) lookup(id uint16) (registration, error) {
	m.mu.RLock()
	r, ok := m.templates[id]
	m.mu.RUnlock()
	if !ok {
		return registration{}, errors.Wrapf(ErrUnknownTemplate, "template %d", id)
	}
	return r, nil
}

// Marshal frames msg. Its template must be registered with a matching
// fingerprint.
func (m *Manager) Marshal(msg Message) ([]byte, error) {
	id := msg.TemplateID()
	r, err := m.lookup(id)
	if err != nil {
		return nil, m.reject(reasonTemplate, id, err)
	}
	if err := wire.CheckFingerprint(templateName(id), r.fingerprint, msg.Fingerprint()); err != nil {
		return nil, m.reject(reasonMismatch, id, err)
	}

	var (
		out    []byte
		reason string
	)
	if s, ok := msg.(sizer); ok && s.Size() > 0 {
		err = m.pool.With(HeaderSize+s.Size(), func(b *wire.Buffer) error {
			frame, why, err := m.encode(b, msg)
			if err != nil {
				reason = why
				return err
			}
			// The pooled buffer is recycled on return.
			out = append([]byte(nil), frame...)
			return nil
		})
	} else {
		out, reason, err = m.encode(wire.NewGrowable(HeaderSize+256, m.cfg.maxFrameSize()), msg)
	}
	if err != nil {
		return nil, m.reject(reason, id, err)
	}
	m.metrics.framesEncoded.Inc()
	m.metrics.bytesEncoded.Add(float64(len(out)))
	return out, nil
}

// encode writes the payload after room for the header, then compresses it
// if configured and fills in the header. The returned frame may alias b.
func (m *Manager) encode(b *wire.Buffer, msg Message) ([]byte, string, error) {
	n, err := msg.EncodeTo(b, HeaderSize)
	if err != nil {
		return nil, reasonEncode, errors.Wrapf(err, "frame: encode template %d", msg.TemplateID())
	}
	frame := b.Raw()[:HeaderSize+n]

	var flags Flags
	if m.cfg.Compress && n >= m.cfg.CompressMinSize {
		frame = m.comp.compress(make([]byte, HeaderSize, HeaderSize+n), frame[HeaderSize:])
		flags |= FlagCompressed
	}
	if len(frame) > m.cfg.maxFrameSize() {
		return nil, reasonTooLarge, errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(frame))
	}
	h := Header{
		FrameLength:   uint32(len(frame)),
		TemplateID:    msg.TemplateID(),
		SchemaVersion: m.version.Wire(),
		Flags:         flags,
	}
	if m.cfg.Checksum {
		h.Flags |= FlagChecksum
		h.Checksum = crc32.ChecksumIEEE(frame[HeaderSize:])
	}
	if err := h.Put(wire.Wrap(frame), 0); err != nil {
		return nil, reasonEncode, err
	}
	return frame, "", nil
}

// Unmarshal reads one frame and decodes its payload into a new message of
// the registered template. Byte fields of the result alias frame unless the
// payload was compressed.
func (m *Manager) Unmarshal(frame []byte) (Message, error) {
	h, payload, err := m.open(frame)
	if err != nil {
		return nil, err
	}
	r, err := m.lookup(h.TemplateID)
	if err != nil {
		return nil, m.reject(reasonTemplate, h.TemplateID, err)
	}
	msg := r.factory()
	if err := m.decode(h, payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// UnmarshalInto reads one frame into msg, whose template and fingerprint
// must match the frame and the registration.
func (m *Manager) UnmarshalInto(frame []byte, msg Message) (Header, error) {
	h, payload, err := m.open(frame)
	if err != nil {
		return Header{}, err
	}
	r, err := m.lookup(h.TemplateID)
	if err != nil {
		return Header{}, m.reject(reasonTemplate, h.TemplateID, err)
	}
	if msg.TemplateID() != h.TemplateID {
		err := errors.Wrapf(wire.ErrSchemaMismatch, "frame: frame holds template %d, not %d", h.TemplateID, msg.TemplateID())
		return Header{}, m.reject(reasonMismatch, h.TemplateID, err)
	}
	if err := wire.CheckFingerprint(templateName(h.TemplateID), r.fingerprint, msg.Fingerprint()); err != nil {
		return Header{}, m.reject(reasonMismatch, h.TemplateID, err)
	}
	if err := m.decode(h, payload, msg); err != nil {
		return Header{}, err
	}
	return h, nil
}

// open checks the header, the frame extent, the version and the checksum,
// and returns the raw payload.
func (m *Manager) open(frame []byte) (Header, []byte, error) {
	h, err := PeekHeader(frame)
	if err != nil {
		return Header{}, nil, m.reject(reasonTruncated, 0, err)
	}
	if int(h.FrameLength) > m.cfg.maxFrameSize() {
		err := errors.Wrapf(ErrFrameTooLarge, "%d bytes", h.FrameLength)
		return Header{}, nil, m.reject(reasonTooLarge, h.TemplateID, err)
	}
	if int(h.FrameLength) > len(frame) {
		err := errors.Wrapf(wire.ErrTruncatedMessage, "frame of %d bytes, %d available", h.FrameLength, len(frame))
		return Header{}, nil, m.reject(reasonTruncated, h.TemplateID, err)
	}
	if v := h.Version(); !v.CompatibleWith(m.version) {
		err := errors.Wrapf(ErrIncompatibleVersion, "frame version %s, reader version %s", v, m.version)
		return Header{}, nil, m.reject(reasonVersion, h.TemplateID, err)
	}
	payload := frame[HeaderSize:h.FrameLength]
	if h.Flags.Has(FlagChecksum) {
		if sum := crc32.ChecksumIEEE(payload); sum != h.Checksum {
			err := errors.Wrapf(ErrChecksumMismatch, "header %#08x, payload %#08x", h.Checksum, sum)
			return Header{}, nil, m.reject(reasonChecksum, h.TemplateID, err)
		}
	}
	return h, payload, nil
}

func (m *Manager) decode(h Header, payload []byte, msg Message) error {
	if h.Flags.Has(FlagCompressed) {
		var err error
		if payload, err = m.comp.decompress(payload); err != nil {
			return m.reject(reasonCompress, h.TemplateID, err)
		}
	}
	n, err := msg.DecodeFrom(wire.Wrap(payload), 0)
	if err != nil {
		return m.reject(reasonDecode, h.TemplateID, errors.Wrapf(err, "frame: decode template %d", h.TemplateID))
	}
	if n != len(payload) {
		err := errors.Wrapf(wire.ErrMalformedLength, "frame: %d trailing payload bytes", len(payload)-n)
		return m.reject(reasonDecode, h.TemplateID, err)
	}
	m.metrics.framesDecoded.Inc()
	m.metrics.bytesDecoded.Add(float64(h.FrameLength))
	return nil
}

func (m *Manager) reject(reason string, id uint16, err error) error {
	m.metrics.fail(reason)
	m.log.Debug("frame rejected",
		zap.String("reason", reason),
		zap.Uint16("template", id),
		zap.Error(err),
	)
	return err
}

func templateName(id uint16) string {
	return "template " + strconv.Itoa(int(id))
}
