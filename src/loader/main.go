// Command loader prints the schema DDL of every persisted model for Atlas.
//
//	atlas migrate diff --env gorm
package main

import (
	"fmt"
	"io"
	"os"

	"tablebook/src/models"

	"ariga.io/atlas-provider-gorm/gormschema"
)

func main() {
	stmts, err := gormschema.New("postgres").Load(
		&models.User{},
		&models.Event{},
		&models.Table{},
		&models.Reservation{},
		&models.UserReservation{},
		&models.Refund{},
		&models.AppliedCharge{},
		&models.EffectTask{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load gorm schema: %v\n", err)
		os.Exit(1)
	}
	io.WriteString(os.Stdout, stmts)
}
