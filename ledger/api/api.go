// Split ledger API: serves the per-split statistics rows recorded by
// streamed runs.
package main

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"regexp"

	reuseport "github.com/kavu/go_reuseport"
	_ "github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"
	"github.com/nci/gstream/utils"
)

var (
	db       *sql.DB
	mc       *memcache.Client
	dbDSN    = flag.String("dsn", "host=/var/run/postgresql dbname=gstream user=api sslmode=disable", "postgres connection string")
	dbTable  = flag.String("table", utils.DefaultStatsTable, "split statistics table")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
)

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

func handler(response http.ResponseWriter, request *http.Request) {

	response.Header().Set("Content-Type", "application/json")

	var hash string

	if mc != nil {

		buff := md5.Sum([]byte(request.URL.RequestURI()))
		hash = hex.EncodeToString(buff[:])

		if cached, ok := mc.Get(hash); ok == nil {
			response.Write(cached.Value)
			return
		}
	}

	query := request.URL.Query()

	if runs, ok := query["run"]; ok && len(runs[0]) > 0 {

		if db == nil {
			httpJSONError(response, errors.New("database unavailable"), 503)
			return
		}

		var payload string

		err := db.QueryRow(fmt.Sprintf(
			`select coalesce(json_agg(row_to_json(t) order by t.seq), '[]'::json)::text as json
			from %s t where t.run_id = $1`, *dbTable),
			runs[0],
		).Scan(&payload)

		if err != nil {
			httpJSONError(response, err, 400)
			return
		}

		response.Write([]byte(payload))

		if mc != nil {
			// don't care about errors; memcache may not necessarily retain this anyway
			mc.Set(&memcache.Item{Key: hash, Value: []byte(payload)})
		}

		return
	}

	httpJSONError(response, errors.New("unknown operation; currently supported: ?run=<id>"), 400)
}

func main() {

	flag.Parse()

	if !identPattern.MatchString(*dbTable) {
		log.Fatalf("invalid table name: %s", *dbTable)
	}

	log.Printf("dbTable %s dbPool %d httpPort %d", *dbTable, *dbPool, *httpPort)

	var err error
	db, err = sql.Open("postgres", *dbDSN)

	if err != nil {
		panic(err)
	}

	defer db.Close()

	db.SetMaxIdleConns(*dbPool)
	db.SetMaxOpenConns(*dbLimit)

	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		mc = memcache.New(*mcURI)
	}

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *httpPort))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	http.HandleFunc("/", handler)
	log.Fatal(http.Serve(lis, nil))
}
