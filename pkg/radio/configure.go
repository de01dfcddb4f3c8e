package radio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	pb "github.com/meshtastic/go/generated"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"gopkg.in/yaml.v3"
)

// DeviceYAML is the shape of an exported device configuration. It
// matches the YAML the official CLI's --export-config emits, so a
// dump from one tool can be applied with the other.
type DeviceYAML struct {
	Owner        string         `yaml:"owner,omitempty"`
	OwnerShort   string         `yaml:"owner_short,omitempty"`
	ChannelURL   string         `yaml:"channel_url,omitempty"`
	Location     *LocationYAML  `yaml:"location,omitempty"`
	Config       map[string]any `yaml:"config,omitempty"`
	ModuleConfig map[string]any `yaml:"module_config,omitempty"`
}

// LocationYAML is a fixed position in an exported configuration.
type LocationYAML struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
	Alt int32   `yaml:"alt,omitempty"`
}

// ExportConfigYAML renders the device's current configuration as YAML.
func (r *Radio) ExportConfigYAML() (string, error) {
	long, short := r.Owner()
	doc := &DeviceYAML{
		Owner:      long,
		OwnerShort: short,
	}

	if url, err := r.ChannelURL(); err == nil {
		doc.ChannelURL = url
	}

	if pos := r.Position(); pos != nil && (pos.LatitudeI != 0 || pos.LongitudeI != 0) {
		doc.Location = &LocationYAML{
			Lat: float64(pos.LatitudeI) / 1e7,
			Lon: float64(pos.LongitudeI) / 1e7,
			Alt: pos.Altitude,
		}
	}

	if r.localConfig != nil {
		m, err := messageToMap(r.localConfig)
		if err != nil {
			return "", fmt.Errorf("export config: %w", err)
		}
		doc.Config = m
	}
	if r.moduleConfig != nil {
		m, err := messageToMap(r.moduleConfig)
		if err != nil {
			return "", fmt.Errorf("export module config: %w", err)
		}
		doc.ModuleConfig = m
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render config yaml: %w", err)
	}
	return "# start of Meshtastic configure yaml\n" + string(body), nil
}

// ChannelURL renders the device's channel table as a shareable URL.
func (r *Radio) ChannelURL() (string, error) {
	set := &pb.ChannelSet{}
	for _, ch := range r.channels {
		if ch.Role == pb.Channel_DISABLED || ch.Settings == nil {
			continue
		}
		set.Settings = append(set.Settings, ch.Settings)
	}
	if len(set.Settings) == 0 {
		return "", fmt.Errorf("device reported no active channels")
	}
	if r.localConfig != nil {
		set.LoraConfig = r.localConfig.Lora
	}

	raw, err := proto.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("marshal channel set: %w", err)
	}
	return "https://meshtastic.org/e/#" + base64.RawURLEncoding.EncodeToString(raw), nil
}

// ApplyConfigYAML applies a YAML configuration document to the device
// and returns one line per change made. Unknown preference keys are
// reported in the output rather than failing the whole document.
func (r *Radio) ApplyConfigYAML(yml string) ([]string, error) {
	var doc DeviceYAML
	if err := yaml.Unmarshal([]byte(yml), &doc); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	var out []string

	if doc.Owner != "" || doc.OwnerShort != "" {
		if err := r.SetOwner(doc.Owner, doc.OwnerShort); err != nil {
			return out, err
		}
		out = append(out, fmt.Sprintf("Set owner to %q / %q", doc.Owner, doc.OwnerShort))
	}

	if doc.ChannelURL != "" {
		if err := r.SetChannelURL(doc.ChannelURL); err != nil {
			return out, err
		}
		out = append(out, "Applied channel URL")
	}

	if doc.Location != nil {
		if err := r.SetFixedPosition(doc.Location.Lat, doc.Location.Lon, doc.Location.Alt); err != nil {
			return out, err
		}
		out = append(out, fmt.Sprintf("Fixed position at %.5f, %.5f (alt %dm)",
			doc.Location.Lat, doc.Location.Lon, doc.Location.Alt))
	}

	if len(doc.Config) == 0 && len(doc.ModuleConfig) == 0 {
		return out, nil
	}

	// Preference writes go through a settings transaction so the
	// device reboots at most once.
	if err := r.BeginEditSettings(); err != nil {
		return out, err
	}

	for _, section := range sortedKeys(doc.Config) {
		lines, err := r.applySection(&sectionTarget{
			container: &pb.Config{},
			current:   r.localConfig,
			write:     func(m proto.Message) error { return r.SetConfig(m.(*pb.Config)) },
		}, section, doc.Config[section])
		out = append(out, lines...)
		if err != nil {
			return out, err
		}
	}

	for _, section := range sortedKeys(doc.ModuleConfig) {
		lines, err := r.applySection(&sectionTarget{
			container: &pb.ModuleConfig{},
			current:   r.moduleConfig,
			write:     func(m proto.Message) error { return r.SetModuleConfig(m.(*pb.ModuleConfig)) },
		}, section, doc.ModuleConfig[section])
		out = append(out, lines...)
		if err != nil {
			return out, err
		}
	}

	if err := r.CommitEditSettings(); err != nil {
		return out, err
	}
	out = append(out, "Committed settings transaction")
	return out, nil
}

// sectionTarget describes where a config section lands: the oneof
// container sent to the device, and the local aggregate holding the
// current values of that section.
type sectionTarget struct {
	container proto.Message
	current   proto.Message
	write     func(proto.Message) error
}

// applySection sets the preferences of one named config section and
// writes the section to the device.
func (r *Radio) applySection(t *sectionTarget, section string, values any) ([]string, error) {
	prefs, ok := values.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config section %q: expected a mapping", section)
	}

	cm := t.container.ProtoReflect()
	fd := findField(cm.Descriptor(), section)
	if fd == nil || fd.Kind() != protoreflect.MessageKind {
		return []string{fmt.Sprintf("Skipped unknown config section %q", section)}, nil
	}

	// Start from the device's current values so a partial section
	// does not zero the fields it omits.
	target := cm.Mutable(fd).Message()
	if t.current != nil {
		curM := t.current.ProtoReflect()
		if curFD := findField(curM.Descriptor(), section); curFD != nil && curM.Has(curFD) {
			proto.Merge(target.Interface(), curM.Get(curFD).Message().Interface())
		}
	}

	var out []string
	for _, key := range sortedKeys(prefs) {
		if err := setField(target, key, prefs[key]); err != nil {
			out = append(out, fmt.Sprintf("Skipped %s.%s: %v", section, key, err))
			continue
		}
		out = append(out, fmt.Sprintf("Set %s.%s to %v", section, key, prefs[key]))
	}

	if err := t.write(t.container); err != nil {
		return out, fmt.Errorf("write config section %q: %w", section, err)
	}
	return out, nil
}

// messageToMap converts a protobuf message into a generic map via its
// JSON form, the same shape the Python tooling exports.
func messageToMap(m proto.Message) (map[string]any, error) {
	raw, err := protojson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic apply order keeps tool output stable.
	sort.Strings(keys)
	return keys
}
