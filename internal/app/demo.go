package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"sastrust/internal/domain"
	"sastrust/internal/log"
	"sastrust/internal/store"
	"sastrust/internal/transport"
)

const demoPassphrase = "Demo-passphrase-1!"

// DemoConfig parameterizes RunDemo.
type DemoConfig struct {
	// Dir receives one home directory per device.
	Dir        string
	Log        *log.Backend
	Out        io.Writer
	SASDigits  int
	Scrypt     store.ScryptParams
	BobDevices int
}

type demoDevice struct {
	name string
	wire *Wire
	app  *App
	ep   *transport.Endpoint
}

// RunDemo establishes trust between Alice with one device and Bob with
// several, over an in-process network, answering every dialog the way the
// users would.
func RunDemo(ctx context.Context, cfg DemoConfig) error {
	if cfg.BobDevices <= 0 {
		cfg.BobDevices = 2
	}
	if cfg.Scrypt == (store.ScryptParams{}) {
		cfg.Scrypt = store.DefaultScryptParams
	}
	hub := transport.NewHub(cfg.Log.GetLogger("hub"))
	out := cfg.Out

	newWire := func(name string) (*Wire, error) {
		return NewWire(&Config{
			Home:     filepath.Join(cfg.Dir, name),
			Protocol: &Protocol{SASDigits: cfg.SASDigits},
		}, WithLogBackend(cfg.Log), WithScryptParams(cfg.Scrypt))
	}
	var devices []*demoDevice
	defer func() {
		for _, d := range devices {
			d.wire.Close()
		}
	}()
	attach := func(name string, w *Wire) (*demoDevice, error) {
		owned, device, err := w.DB.LocalIdentity()
		if err != nil {
			return nil, err
		}
		d := &demoDevice{name: name, wire: w}
		d.ep = hub.Attach(owned, device, nil)
		w.SetTransport(d.ep)
		devices = append(devices, d)
		return d, nil
	}

	aw, err := newWire("alice")
	if err != nil {
		return err
	}
	alice, fp, err := aw.Identity.GenerateIdentity(demoPassphrase, domain.CoreDetails{FirstName: "Alice"})
	if err != nil {
		aw.Close()
		return err
	}
	a1, err := attach("alice", aw)
	if err != nil {
		aw.Close()
		return err
	}
	fmt.Fprintf(out, "alice: identity %s\n", fp)

	bw, err := newWire("bob-1")
	if err != nil {
		return err
	}
	bob, fp, err := bw.Identity.GenerateIdentity(demoPassphrase, domain.CoreDetails{FirstName: "Bob"})
	if err != nil {
		bw.Close()
		return err
	}
	if _, err := attach("bob-1", bw); err != nil {
		bw.Close()
		return err
	}
	fmt.Fprintf(out, "bob: identity %s\n", fp)
	for i := 2; i <= cfg.BobDevices; i++ {
		name := fmt.Sprintf("bob-%d", i)
		w, err := newWire(name)
		if err != nil {
			return err
		}
		if _, err := w.Identity.LinkDevice(demoPassphrase, bw.Keys.Path()); err != nil {
			w.Close()
			return err
		}
		if _, err := attach(name, w); err != nil {
			w.Close()
			return err
		}
	}

	// Every device learns its siblings from the hub directory.
	for _, d := range devices {
		owned, self, err := d.wire.DB.LocalIdentity()
		if err != nil {
			return err
		}
		for _, u := range hub.Devices(owned) {
			if u == self {
				continue
			}
			if _, err := d.wire.DB.AddOwnedDevice(owned, u); err != nil {
				return err
			}
		}
		name := d.name
		a, err := d.wire.Unlock(demoPassphrase, func(dl domain.Dialog) {
			fmt.Fprintf(out, "%s: dialog %s", name, dl.Category)
			if dl.SasToDisplay != "" {
				fmt.Fprintf(out, " show %s", dl.SasToDisplay)
			}
			if dl.BadAttempts > 0 {
				fmt.Fprintf(out, " bad attempts %d", dl.BadAttempts)
			}
			fmt.Fprintln(out)
		})
		if err != nil {
			return err
		}
		d.app = a
		d.ep.SetHandler(a.Trust.Deliver)
	}
	run := func() error {
		_, err := hub.Run(ctx, 0)
		return err
	}

	b1 := devices[1]
	if _, err := a1.app.Trust.Invite(ctx, bob.Identity, "Bob"); err != nil {
		return err
	}
	if err := run(); err != nil {
		return err
	}

	accept, err := demoDialog(b1.app, domain.DialogAcceptInvite)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: accepting invitation from %s\n", b1.name, accept.ContactName)
	if err := b1.app.Trust.RespondToInvite(ctx, accept.ID, true); err != nil {
		return err
	}
	if err := run(); err != nil {
		return err
	}

	aliceSAS, err := demoDialog(a1.app, domain.DialogSasExchange)
	if err != nil {
		return err
	}
	bobSAS, err := demoDialog(b1.app, domain.DialogSasExchange)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: typing %s\n", b1.name, aliceSAS.SasToDisplay)
	if _, err := b1.app.Trust.EnterSAS(ctx, bobSAS.ID, aliceSAS.SasToDisplay); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: typing %s\n", a1.name, bobSAS.SasToDisplay)
	if _, err := a1.app.Trust.EnterSAS(ctx, aliceSAS.ID, bobSAS.SasToDisplay); err != nil {
		return err
	}
	if err := run(); err != nil {
		return err
	}

	for _, d := range devices {
		contacts, err := d.app.Trust.Contacts()
		if err != nil {
			return err
		}
		want := bob.Identity
		if d.app.Owned.Identity == bob.Identity {
			want = alice.Identity
		}
		if len(contacts) != 1 || contacts[0].Identity != want {
			return fmt.Errorf("demo: %s did not establish trust", d.name)
		}
		fmt.Fprintf(out, "%s: trusts %s (%s, %d device)\n", d.name,
			contacts[0].Details.FullDisplayName(), contacts[0].TrustLevel(), len(contacts[0].Devices))
	}
	return nil
}

func demoDialog(a *App, category domain.DialogCategory) (domain.Dialog, error) {
	dialogs, err := a.Trust.Dialogs()
	if err != nil {
		return domain.Dialog{}, err
	}
	for _, d := range dialogs {
		if d.Category == category {
			return d, nil
		}
	}
	return domain.Dialog{}, fmt.Errorf("demo: no %s dialog", category)
}
