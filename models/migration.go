package models

import (
	"log"

	"bitbucket.org/standupsync/tickets_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Event{}, &EventTicketPlatform{},
		&TicketSale{},
		&ReconciliationReport{}, &Discrepancy{},
		&AuditLog{},
		&AlertNotification{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
