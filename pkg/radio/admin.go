package radio

import (
	"encoding/base64"
	"fmt"
	"strings"

	pb "github.com/meshtastic/go/generated"
	"google.golang.org/protobuf/proto"
)

// sendAdmin wraps an AdminMessage for the local node.
func (r *Radio) sendAdmin(msg *pb.AdminMessage) error {
	body, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal admin message: %w", err)
	}
	p := r.newPacket(r.NodeNum(), 0, true, &pb.Data{
		Portnum: pb.PortNum_ADMIN_APP,
		Payload: body,
	})
	return r.sendPacket(p)
}

// SetOwner sets the device owner names. Empty strings leave the
// corresponding name untouched.
func (r *Radio) SetOwner(long, short string) error {
	if long == "" && short == "" {
		return fmt.Errorf("set owner: no names given")
	}

	user := &pb.User{LongName: long, ShortName: short}
	if self := r.SelfNode(); self != nil && self.User != nil {
		if long == "" {
			user.LongName = self.User.LongName
		}
		if short == "" {
			user.ShortName = self.User.ShortName
		}
	}

	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_SetOwner{SetOwner: user},
	})
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}

	// Reflect the change in our own view of the node.
	if self := r.SelfNode(); self != nil && self.User != nil {
		self.User.LongName = user.LongName
		self.User.ShortName = user.ShortName
	}
	return nil
}

// SetFixedPosition pins the device to a fixed position.
func (r *Radio) SetFixedPosition(lat, lon float64, alt int32) error {
	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_SetFixedPosition{
			SetFixedPosition: &pb.Position{
				LatitudeI:  int32(lat * 1e7),
				LongitudeI: int32(lon * 1e7),
				Altitude:   alt,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("set fixed position: %w", err)
	}
	return nil
}

// SetConfig writes one configuration section to the device.
func (r *Radio) SetConfig(cfg *pb.Config) error {
	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_SetConfig{SetConfig: cfg},
	})
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

// SetModuleConfig writes one module configuration section.
func (r *Radio) SetModuleConfig(cfg *pb.ModuleConfig) error {
	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_SetModuleConfig{SetModuleConfig: cfg},
	})
	if err != nil {
		return fmt.Errorf("set module config: %w", err)
	}
	return nil
}

// Reboot asks the device to reboot after the given delay.
func (r *Radio) Reboot(secs int32) error {
	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_RebootSeconds{RebootSeconds: secs},
	})
	if err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

// Shutdown asks the device to power off after the given delay.
func (r *Radio) Shutdown(secs int32) error {
	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_ShutdownSeconds{ShutdownSeconds: secs},
	})
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// FactoryReset wipes the device settings. The device reboots and
// comes back with factory defaults.
func (r *Radio) FactoryReset() error {
	err := r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_FactoryReset{FactoryReset: 1},
	})
	if err != nil {
		return fmt.Errorf("factory reset: %w", err)
	}
	return nil
}

// BeginEditSettings opens a settings transaction on the device.
func (r *Radio) BeginEditSettings() error {
	return r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_BeginEditSettings{BeginEditSettings: true},
	})
}

// CommitEditSettings commits the open settings transaction.
func (r *Radio) CommitEditSettings() error {
	return r.sendAdmin(&pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_CommitEditSettings{CommitEditSettings: true},
	})
}

// SetChannelURL applies a shared channel URL, the same format the
// official apps exchange ("https://meshtastic.org/e/#<base64>").
func (r *Radio) SetChannelURL(url string) error {
	set, err := DecodeChannelURL(url)
	if err != nil {
		return err
	}

	for i, settings := range set.Settings {
		role := pb.Channel_SECONDARY
		if i == 0 {
			role = pb.Channel_PRIMARY
		}
		ch := &pb.Channel{
			Index:    int32(i),
			Settings: settings,
			Role:     role,
		}
		err := r.sendAdmin(&pb.AdminMessage{
			PayloadVariant: &pb.AdminMessage_SetChannel{SetChannel: ch},
		})
		if err != nil {
			return fmt.Errorf("set channel %d: %w", i, err)
		}
	}

	if set.LoraConfig != nil {
		err := r.SetConfig(&pb.Config{
			PayloadVariant: &pb.Config_Lora{Lora: set.LoraConfig},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DecodeChannelURL extracts the ChannelSet from a shared channel URL.
func DecodeChannelURL(url string) (*pb.ChannelSet, error) {
	frag := url
	if i := strings.LastIndex(url, "#"); i >= 0 {
		frag = url[i+1:]
	}
	if frag == "" {
		return nil, fmt.Errorf("channel URL %q has no payload", url)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(frag, "="))
	if err != nil {
		return nil, fmt.Errorf("decode channel URL: %w", err)
	}

	set := &pb.ChannelSet{}
	if err := proto.Unmarshal(raw, set); err != nil {
		return nil, fmt.Errorf("parse channel set: %w", err)
	}
	return set, nil
}
