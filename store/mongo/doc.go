// Package mongo implements store.Store on MongoDB with the official v2
// driver. Invocations live in one collection keyed by invocation ID; claims
// use FindOneAndUpdate so a document is handed to exactly one worker.
//
// The caller owns the database handle; Close never disconnects it:
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	s := mongo.New(client.Database("tasker"))
//	if err := s.Migrate(ctx); err != nil { ... }
//
// Open builds its own client and returns a function that disconnects it.
package mongo
