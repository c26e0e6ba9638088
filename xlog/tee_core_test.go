package xlog

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConsoleMultiCores_DataRace(t *testing.T) {
	tee := make(xLogMultiCore, 0, 2)
	require.Nil(t, tee.context())
	require.Nil(t, tee.writeSyncer())
	require.Nil(t, tee.levelEncoder())
	require.Nil(t, tee.timeEncoder())
	require.Nil(t, tee.outEncoder())

	lvlEnabler := zap.NewAtomicLevelAt(LogLevelDebug.zapLevel())
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	cc := newConsoleCore(
		ctx,
		&lvlEnabler,
		JSON,
		zapcore.CapitalLevelEncoder,
		zapcore.ISO8601TimeEncoder,
	)
	tee = append(tee, cc)

	plain := newConsoleCore(
		ctx,
		&lvlEnabler,
		PlainText,
		zapcore.CapitalLevelEncoder,
		zapcore.ISO8601TimeEncoder,
	)
	tee = append(tee, plain)

	tee2, err := WrapCores(tee, *componentCoreEncoderCfg)
	require.NoError(t, err)

	var ws sync.WaitGroup
	ws.Add(2)
	go func() {
		ent := cc.Check(zapcore.Entry{Level: zapcore.DebugLevel}, nil)
		for i := 0; i < 100; i++ {
			time.Sleep(time.Millisecond)
			err := tee.Write(ent.Entry, []zap.Field{zap.String("tee", strconv.Itoa(i))})
			require.NoError(t, err)
		}
		ws.Done()
	}()
	go func() {
		ent := cc.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil)
		for i := 0; i < 100; i++ {
			time.Sleep(time.Millisecond)
			err := tee2.Write(ent.Entry, []zap.Field{zap.String("tee2", strconv.Itoa(i))})
			require.NoError(t, err)
		}
		ws.Done()
	}()
	go func() {
		time.Sleep(40 * time.Millisecond)
		lvlEnabler.SetLevel(LogLevelInfo.zapLevel())
		time.Sleep(40 * time.Millisecond)
		lvlEnabler.SetLevel(LogLevelDebug.zapLevel())
	}()
	ws.Wait()

	require.NoError(t, tee.Sync())
	require.NoError(t, tee2.Sync())
}
