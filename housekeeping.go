package main

import (
	"fmt"
	"time"

	"github.com/davecheney/fedipub/models"
	"gorm.io/gorm"
)

type HouseKeepingCmd struct {
	Retention time.Duration `help:"how long mirrored inbox activities are kept" default:"720h"`
}

func (c *HouseKeepingCmd) Run(ctx *Context) error {
	db, err := ctx.openDB()
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		n, err := models.NewDeliveryQueue(tx).PurgeExhausted()
		if err != nil {
			return err
		}
		fmt.Println("deleted", n, "deliveries which exhausted their attempts")

		n, err = models.NewInboxActivities(tx).PurgeSynced(time.Now().Add(-c.Retention).UTC())
		if err != nil {
			return err
		}
		fmt.Println("deleted", n, "mirrored inbox activities")
		return nil
	})
}
