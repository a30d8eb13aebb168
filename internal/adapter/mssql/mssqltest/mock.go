// Package mssqltest создаёт mssql.Probe поверх sqlmock для тестов
// пакетов, которые проверяют доступность базы данных.
package mssqltest

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/adapter/mssql"
)

// ErrQueryFailed — ошибка контрольного запроса нездоровой базы.
var ErrQueryFailed = errors.New("mssqltest: контрольный запрос отклонён")

// NewProbe возвращает Probe, который ожидает ровно checks успешных
// проверок. Невыполненные ожидания проваливают тест при его завершении.
func NewProbe(t *testing.T, checks int) *mssql.Probe {
	t.Helper()
	p, mock := newProbe(t)
	for i := 0; i < checks; i++ {
		mock.ExpectPing()
		mock.ExpectQuery(mssql.DefaultQuery).
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(1))
	}
	return p
}

// NewFailingProbe возвращает Probe, первая проверка которого завершается
// ErrQueryFailed. После неё Probe закрывает пул, поэтому повторные
// проверки в тестах использовать нельзя.
func NewFailingProbe(t *testing.T) *mssql.Probe {
	t.Helper()
	p, mock := newProbe(t)
	mock.ExpectPing()
	mock.ExpectQuery(mssql.DefaultQuery).WillReturnError(ErrQueryFailed)
	mock.ExpectClose()
	return p
}

func newProbe(t *testing.T) (*mssql.Probe, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.MonitorPingsOption(true),
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return mssql.NewWithDB(db, mssql.Options{}, nil), mock
}
