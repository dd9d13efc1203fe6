package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecheney/fedipub/internal/crypto"
	"github.com/davecheney/fedipub/models"
	"gorm.io/gorm"
)

type CreateAccountCmd struct {
	Handle  string `arg:"" help:"handle of the account to create"`
	Name    string `help:"display name, defaults to the handle"`
	Summary string `help:"profile summary"`
}

func (c *CreateAccountCmd) Run(ctx *Context) error {
	db, err := ctx.openDB()
	if err != nil {
		return err
	}

	accounts := models.NewAccounts(db)
	if _, err := accounts.Find(c.Handle); !errors.Is(err, gorm.ErrRecordNotFound) {
		if err == nil {
			return fmt.Errorf("account %q already exists", c.Handle)
		}
		return err
	}

	keypair, err := crypto.GenerateRSAKeypair()
	if err != nil {
		return err
	}
	name := c.Name
	if name == "" {
		name = c.Handle
	}
	if err := accounts.Save(&models.Account{
		Handle:       c.Handle,
		Name:         name,
		Summary:      c.Summary,
		PublicKey:    string(keypair.PublicKey),
		Discoverable: true,
	}); err != nil {
		return err
	}

	if ctx.KeysDir == "" {
		// no key store to write to, the operator must keep it
		fmt.Printf("PRIVATE_KEY_%s=%q\n", c.Handle, keypair.PrivateKey)
		return nil
	}
	path := filepath.Join(ctx.KeysDir, c.Handle+".pem")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(keypair.PrivateKey); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println("created", c.Handle, "private key written to", path)
	return nil
}
