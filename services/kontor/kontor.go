// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"net/http"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/relabs-tech/kontor/core/access"
	"github.com/relabs-tech/kontor/core/csql"
	"github.com/relabs-tech/kontor/core/logger"
	"github.com/relabs-tech/kontor/core/schema"
	"github.com/relabs-tech/kontor/erp"
	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/facade/blob"
	"github.com/relabs-tech/kontor/facade/events"
	"github.com/relabs-tech/kontor/premium"
	"github.com/relabs-tech/kontor/store"
	"github.com/relabs-tech/kontor/store/inmem"
	"github.com/relabs-tech/kontor/store/psql"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// with an empty POSTGRES, the service runs on a non-persistent in-memory store
type Service struct {
	Address          string `env:"ADDRESS,default=:3000" description:"the address the service listens on"`
	AllowedOrigin    string `env:"ALLOWED_ORIGIN,default=http://localhost:3000" description:"the single origin allowed by CORS"`
	Postgres         string `env:"POSTGRES,default=" description:"the connection string for the Postgres DB"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,default=" description:"password for the Postgres DB"`
	Schema           string `env:"SCHEMA,default=kontor" description:"the database schema"`
	JwtPublicKey     string `env:"JWT_PUBLIC_KEY,default=" description:"PEM encoded RSA public key for JWT verification"`
	JwtIssuer        string `env:"JWT_ISSUER,default=" description:"required JWT issuer"`
	AdminToken       string `env:"ADMIN_TOKEN,default=" description:"static bearer token with admin rights, development only"`
	KafkaBrokers     string `env:"KAFKA_BROKERS,default=" description:"comma separated kafka brokers for change events"`
	KafkaTopic       string `env:"KAFKA_TOPIC,default=kontor-events" description:"kafka topic for change events"`
	BlobPath         string `env:"BLOB_PATH,default=./blobs" description:"directory for the filesystem blob store"`
	S3Bucket         string `env:"S3_BUCKET,default=" description:"S3 bucket for the blob store, overrides BLOB_PATH"`
	S3Region         string `env:"S3_REGION,default=" description:"S3 region"`
	S3AccessID       string `env:"S3_ACCESS_ID,default=" description:"S3 access key id"`
	S3AccessKey      string `env:"S3_ACCESS_KEY,default=" description:"S3 secret access key"`
	UpgradeURL       string `env:"PREMIUM_UPGRADE_URL,default=" description:"upgrade site advertised by the premium routes"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLogger(logrus.InfoLevel)
	log := logger.Default()

	var dataStore store.Store
	if service.Postgres != "" {
		db := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.Schema)
		defer db.Close()
		dataStore = psql.MustNew(db, erp.Collections()...)
	} else {
		log.Infoln("POSTGRES not set, using in-memory store")
		dataStore = inmem.New(erp.Collections()...)
	}

	var blobs blob.Driver
	var err error
	if service.S3Bucket != "" {
		blobs, err = blob.NewS3(blob.S3Configuration{
			AccessID:      service.S3AccessID,
			AccessKey:     service.S3AccessKey,
			AWSRegion:     service.S3Region,
			AWSBucketName: service.S3Bucket,
		})
	} else {
		blobs, err = blob.NewLocalFilesystem(service.BlobPath)
	}
	if err != nil {
		panic(err)
	}

	var notifier facade.Notifier
	if service.KafkaBrokers != "" {
		publisher := events.NewPublisher(strings.Split(service.KafkaBrokers, ","), service.KafkaTopic)
		defer publisher.Close()
		notifier = publisher
	}

	validator, err := schema.NewValidator(erp.Schemas(), nil)
	if err != nil {
		panic(err)
	}

	router := mux.NewRouter()
	logger.AddRequestID(router)
	if service.AdminToken != "" {
		log.Warningln("ADMIN_TOKEN is set, development only")
		router.Use(access.NewTokenMiddleware(&access.TokenMiddlewareBuilder{
			Tokens: map[string]access.Authorization{
				service.AdminToken: {Identity: "admin", Roles: []string{"admin"}},
			},
		}))
	}
	if service.JwtPublicKey != "" {
		router.Use(access.NewJwtMiddleware(&access.JwtMiddlewareBuilder{
			PublicKeyPEM: service.JwtPublicKey,
			Issuer:       service.JwtIssuer,
		}))
	}
	access.HandleAuthorizationRoute(router)

	facade.MustNew(&facade.Builder{
		Store:         dataStore,
		Router:        router,
		Resources:     erp.Resources(),
		AllowedOrigin: service.AllowedOrigin,
		Validator:     validator,
		Notifier:      notifier,
		Blobs:         blobs,
	})
	premium.HandleRoutes(router, service.UpgradeURL)

	for _, rc := range erp.Resources() {
		log.Infoln("serving", facade.Route(rc.Name))
	}
	log.Infoln("listen on", service.Address)
	http.ListenAndServe(service.Address, router)
}
