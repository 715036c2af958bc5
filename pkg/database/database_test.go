package database

import (
	"database/sql"
	"testing"

	"github.com/samogod/blockforge/pkg/config"
)

func TestAttachSchemaFailure(t *testing.T) {
	conn, err := sql.Open("postgres", "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	db := &DB{enabled: true}
	if err := db.attach(conn); err == nil {
		t.Fatal("attach succeeded on a closed connection")
	}
	if db.IsEnabled() {
		t.Error("database still enabled after schema failure")
	}

	summary, err := db.TrackDomains("ads", []string{"foo.bar"})
	if err != nil || summary != (TrackSummary{}) {
		t.Errorf("TrackDomains on disabled db = %+v, %v", summary, err)
	}
}

func TestDisabled(t *testing.T) {
	db, err := New(&config.Database{})
	if err != nil {
		t.Fatal(err)
	}
	if db.IsEnabled() {
		t.Error("disabled config produced an enabled db")
	}
	if _, err := db.QueryDomains("ads", ""); err == nil {
		t.Error("QueryDomains on disabled db should fail")
	}
	if err := db.Close(); err != nil {
		t.Error(err)
	}
}
