package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the typed SQL statements of the receipt store.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Nota is a row of notas.
type Nota struct {
	ID              int64
	Estabelecimento string
	Endereco        sql.NullString
	TotalCents      int64
	DataEmissao     sql.NullString
	DataLeitura     string
	UrlOrigem       string
}

// ItemRow is a row of itens joined with its category.
type ItemRow struct {
	ID             int64
	NotaID         int64
	Nome           string
	Qtd            float64
	ValorCents     int64
	CategoriaID    sql.NullInt64
	CategoriaNome  sql.NullString
	CategoriaIcone sql.NullString
	CategoriaCor   sql.NullString
}

// Categoria is a row of categorias.
type Categoria struct {
	ID    int64
	Nome  string
	Icone string
	Cor   string
}

const notaColumns = `n.id, n.estabelecimento, n.endereco, n.total_cents, n.data_emissao, n.data_leitura, n.url_origem`

func scanNota(row interface{ Scan(...any) error }) (Nota, error) {
	var n Nota
	err := row.Scan(&n.ID, &n.Estabelecimento, &n.Endereco, &n.TotalCents, &n.DataEmissao, &n.DataLeitura, &n.UrlOrigem)
	return n, err
}

// ListNotasParams filters ListNotas. Empty strings disable a bound.
type ListNotasParams struct {
	Busca    string
	Since    string
	UntilExc string
	Limit    int64
}

func (q *Queries) ListNotas(ctx context.Context, arg ListNotasParams) ([]Nota, error) {
	var (
		where []string
		args  []any
	)
	if arg.Busca != "" {
		like := "%" + arg.Busca + "%"
		where = append(where, `(n.estabelecimento LIKE ? OR EXISTS (
			SELECT 1 FROM itens i WHERE i.nota_id = n.id AND i.nome LIKE ?))`)
		args = append(args, like, like)
	}
	if arg.Since != "" {
		where = append(where, `n.data_emissao >= ?`)
		args = append(args, arg.Since)
	}
	if arg.UntilExc != "" {
		where = append(where, `n.data_emissao < ?`)
		args = append(args, arg.UntilExc)
	}

	query := `SELECT ` + notaColumns + ` FROM notas n`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY n.data_leitura DESC, n.id DESC LIMIT ?`
	args = append(args, arg.Limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Nota
	for rows.Next() {
		n, err := scanNota(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

const getNota = `SELECT ` + notaColumns + ` FROM notas n WHERE n.id = ?`

func (q *Queries) GetNota(ctx context.Context, id int64) (Nota, error) {
	return scanNota(q.db.QueryRowContext(ctx, getNota, id))
}

const getNotaByURL = `SELECT ` + notaColumns + ` FROM notas n WHERE n.url_origem = ?`

func (q *Queries) GetNotaByURL(ctx context.Context, url string) (Nota, error) {
	return scanNota(q.db.QueryRowContext(ctx, getNotaByURL, url))
}

const createNota = `INSERT INTO notas (estabelecimento, endereco, total_cents, data_emissao, url_origem)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type CreateNotaParams struct {
	Estabelecimento string
	Endereco        sql.NullString
	TotalCents      int64
	DataEmissao     sql.NullString
	UrlOrigem       string
}

func (q *Queries) CreateNota(ctx context.Context, arg CreateNotaParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createNota,
		arg.Estabelecimento, arg.Endereco, arg.TotalCents, arg.DataEmissao, arg.UrlOrigem,
	).Scan(&id)
	return id, err
}

const deleteItensByNota = `DELETE FROM itens WHERE nota_id = ?`

const deleteNota = `DELETE FROM notas WHERE id = ?`

func (q *Queries) DeleteNota(ctx context.Context, id int64) (int64, error) {
	if _, err := q.db.ExecContext(ctx, deleteItensByNota, id); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, deleteNota, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createItem = `INSERT INTO itens (nota_id, nome, qtd, valor_cents, categoria_id) VALUES (?, ?, ?, ?, ?)`

type CreateItemParams struct {
	NotaID      int64
	Nome        string
	Qtd         float64
	ValorCents  int64
	CategoriaID sql.NullInt64
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) error {
	_, err := q.db.ExecContext(ctx, createItem, arg.NotaID, arg.Nome, arg.Qtd, arg.ValorCents, arg.CategoriaID)
	return err
}

const itemColumns = `i.id, i.nota_id, i.nome, i.qtd, i.valor_cents, i.categoria_id, c.nome, c.icone, c.cor`

func scanItem(row interface{ Scan(...any) error }) (ItemRow, error) {
	var i ItemRow
	err := row.Scan(&i.ID, &i.NotaID, &i.Nome, &i.Qtd, &i.ValorCents,
		&i.CategoriaID, &i.CategoriaNome, &i.CategoriaIcone, &i.CategoriaCor)
	return i, err
}

const listItensByNota = `SELECT ` + itemColumns + `
FROM itens i
LEFT JOIN categorias c ON c.id = i.categoria_id
WHERE i.nota_id = ?
ORDER BY i.id`

func (q *Queries) ListItensByNota(ctx context.Context, notaID int64) ([]ItemRow, error) {
	rows, err := q.db.QueryContext(ctx, listItensByNota, notaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemRow
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// ItemHit is an item joined with its receipt's vendor and date.
type ItemHit struct {
	ItemRow
	Estabelecimento string
	DataEmissao     sql.NullString
}

const searchItens = `SELECT ` + itemColumns + `, n.estabelecimento, n.data_emissao
FROM itens i
JOIN notas n ON n.id = i.nota_id
LEFT JOIN categorias c ON c.id = i.categoria_id
WHERE i.nome LIKE ?
ORDER BY CASE WHEN i.nome LIKE ? THEN 0 ELSE 1 END, i.nome ASC
LIMIT ?`

func (q *Queries) SearchItens(ctx context.Context, term string, limit int64) ([]ItemHit, error) {
	return q.queryHits(ctx, searchItens, "%"+term+"%", term+"%", limit)
}

// ItemFilter bounds a drill-down. Empty strings disable a bound.
type ItemFilter struct {
	Since    string
	UntilExc string
	Limit    int64
}

func (f ItemFilter) apply(query string, args []any) (string, []any) {
	if f.Since != "" {
		query += ` AND n.data_emissao >= ?`
		args = append(args, f.Since)
	}
	if f.UntilExc != "" {
		query += ` AND n.data_emissao < ?`
		args = append(args, f.UntilExc)
	}
	query += ` ORDER BY n.data_emissao DESC, i.id LIMIT ?`
	return query, append(args, f.Limit)
}

const itensByCategoria = `SELECT ` + itemColumns + `, n.estabelecimento, n.data_emissao
FROM itens i
JOIN notas n ON n.id = i.nota_id
LEFT JOIN categorias c ON c.id = i.categoria_id
WHERE i.categoria_id = ?`

func (q *Queries) ListItensByCategoria(ctx context.Context, categoriaID int64, f ItemFilter) ([]ItemHit, error) {
	query, args := f.apply(itensByCategoria, []any{categoriaID})
	return q.queryHits(ctx, query, args...)
}

const itensByFornecedor = `SELECT ` + itemColumns + `, n.estabelecimento, n.data_emissao
FROM itens i
JOIN notas n ON n.id = i.nota_id
LEFT JOIN categorias c ON c.id = i.categoria_id
WHERE n.estabelecimento LIKE ?`

func (q *Queries) ListItensByFornecedor(ctx context.Context, fornecedor string, f ItemFilter) ([]ItemHit, error) {
	query, args := f.apply(itensByFornecedor, []any{"%" + fornecedor + "%"})
	return q.queryHits(ctx, query, args...)
}

func (q *Queries) queryHits(ctx context.Context, query string, args ...any) ([]ItemHit, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ItemHit
	for rows.Next() {
		var h ItemHit
		err := rows.Scan(&h.ID, &h.NotaID, &h.Nome, &h.Qtd, &h.ValorCents,
			&h.CategoriaID, &h.CategoriaNome, &h.CategoriaIcone, &h.CategoriaCor,
			&h.Estabelecimento, &h.DataEmissao)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

const getItemCategoria = `SELECT categoria_id FROM itens WHERE id = ?`

func (q *Queries) GetItemCategoria(ctx context.Context, itemID int64) (sql.NullInt64, error) {
	var id sql.NullInt64
	err := q.db.QueryRowContext(ctx, getItemCategoria, itemID).Scan(&id)
	return id, err
}

const setItemCategoria = `UPDATE itens SET categoria_id = ? WHERE id = ?`

func (q *Queries) SetItemCategoria(ctx context.Context, itemID, categoriaID int64) error {
	_, err := q.db.ExecContext(ctx, setItemCategoria, categoriaID, itemID)
	return err
}

const listCategorias = `SELECT id, nome, icone, cor FROM categorias ORDER BY nome`

func (q *Queries) ListCategorias(ctx context.Context) ([]Categoria, error) {
	rows, err := q.db.QueryContext(ctx, listCategorias)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []Categoria
	for rows.Next() {
		var c Categoria
		if err := rows.Scan(&c.ID, &c.Nome, &c.Icone, &c.Cor); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

const getCategoria = `SELECT id, nome, icone, cor FROM categorias WHERE id = ?`

func (q *Queries) GetCategoria(ctx context.Context, id int64) (Categoria, error) {
	var c Categoria
	err := q.db.QueryRowContext(ctx, getCategoria, id).Scan(&c.ID, &c.Nome, &c.Icone, &c.Cor)
	return c, err
}

const countCategoriaByNome = `SELECT COUNT(*) FROM categorias WHERE nome = ?`

func (q *Queries) CountCategoriaByNome(ctx context.Context, nome string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCategoriaByNome, nome).Scan(&n)
	return n, err
}

const createCategoria = `INSERT INTO categorias (nome, icone, cor) VALUES (?, ?, ?) RETURNING id`

func (q *Queries) CreateCategoria(ctx context.Context, nome, icone, cor string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createCategoria, nome, icone, cor).Scan(&id)
	return id, err
}

const renameEstabelecimento = `UPDATE notas SET estabelecimento = ? WHERE estabelecimento = ?`

func (q *Queries) RenameEstabelecimento(ctx context.Context, atual, novo string) (int64, error) {
	res, err := q.db.ExecContext(ctx, renameEstabelecimento, novo, atual)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CategoriaSum is one group of the spending-by-category aggregate.
type CategoriaSum struct {
	Categoria
	TotalCents int64
}

const sumByCategoria = `SELECT c.id, c.nome, c.icone, c.cor, CAST(ROUND(SUM(i.valor_cents * i.qtd)) AS INTEGER) AS total
FROM categorias c
JOIN itens i ON i.categoria_id = c.id
JOIN notas n ON n.id = i.nota_id
WHERE n.data_emissao >= ? AND n.data_emissao < ?
GROUP BY c.id
ORDER BY total DESC`

func (q *Queries) SumByCategoria(ctx context.Context, since, untilExc string) ([]CategoriaSum, error) {
	rows, err := q.db.QueryContext(ctx, sumByCategoria, since, untilExc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []CategoriaSum
	for rows.Next() {
		var s CategoriaSum
		if err := rows.Scan(&s.ID, &s.Nome, &s.Icone, &s.Cor, &s.TotalCents); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

// FornecedorSum is one group of the spending-by-vendor aggregate.
type FornecedorSum struct {
	Estabelecimento string
	TotalCents      int64
	NumCompras      int64
}

const sumByFornecedor = `SELECT n.estabelecimento, SUM(n.total_cents) AS total, COUNT(n.id)
FROM notas n
WHERE n.data_emissao >= ? AND n.data_emissao < ?
GROUP BY n.estabelecimento
ORDER BY total DESC
LIMIT ?`

func (q *Queries) SumByFornecedor(ctx context.Context, since, untilExc string, limit int64) ([]FornecedorSum, error) {
	rows, err := q.db.QueryContext(ctx, sumByFornecedor, since, untilExc, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []FornecedorSum
	for rows.Next() {
		var s FornecedorSum
		if err := rows.Scan(&s.Estabelecimento, &s.TotalCents, &s.NumCompras); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

// PeriodTotals are the receipt-level aggregates over a date range.
type PeriodTotals struct {
	TotalCents      int64
	NumNotas        int64
	NumFornecedores int64
}

const periodTotals = `SELECT COALESCE(SUM(total_cents), 0), COUNT(id), COUNT(DISTINCT estabelecimento)
FROM notas
WHERE data_emissao >= ? AND data_emissao < ?`

func (q *Queries) GetPeriodTotals(ctx context.Context, since, untilExc string) (PeriodTotals, error) {
	var t PeriodTotals
	err := q.db.QueryRowContext(ctx, periodTotals, since, untilExc).Scan(&t.TotalCents, &t.NumNotas, &t.NumFornecedores)
	return t, err
}
