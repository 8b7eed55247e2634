package sqlinline

const QCreateUnlocksTable = `--sql fffb9abf-cc19-4b82-95cc-99a38facc9b8
create table if not exists artifact_unlocks (
  id          uuid primary key,
  widget_id   text not null,
  batch       text not null,
  image_index int not null,
  order_id    text not null default '',
  price_cents bigint not null,
  currency    text not null,
  created_at  timestamptz not null default now(),
  unique (widget_id, batch, image_index)
);
create index if not exists idx_artifact_unlocks_widget on artifact_unlocks(widget_id, created_at);
`

const QInsertUnlock = `--sql 1517258f-1b7d-4385-b3c0-2e5664cbeb1e
insert into artifact_unlocks(id, widget_id, batch, image_index, order_id, price_cents, currency, created_at)
values ($1::uuid, $2::text, $3::text, $4::int, $5::text, $6::bigint, $7::text, $8::timestamptz)
on conflict (widget_id, batch, image_index) do nothing;
`

const QListUnlocksByWidget = `--sql 38da48c0-fc88-47d8-b789-4d5641f6da0e
select id::text, widget_id, batch, image_index, order_id, price_cents, currency, created_at
from artifact_unlocks
where widget_id = $1::text
order by created_at asc, image_index asc;
`

const QSQLiteCreateUnlocksTable = `--sql 5545b28f-4bfa-4779-bafa-e33fdf1dd05a
CREATE TABLE IF NOT EXISTS artifact_unlocks (
    id TEXT PRIMARY KEY,
    widget_id TEXT NOT NULL,
    batch TEXT NOT NULL,
    image_index INTEGER NOT NULL,
    order_id TEXT NOT NULL DEFAULT '',
    price_cents INTEGER NOT NULL,
    currency TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (widget_id, batch, image_index)
);
CREATE INDEX IF NOT EXISTS idx_artifact_unlocks_widget ON artifact_unlocks(widget_id, created_at);
`

const QSQLiteInsertUnlock = `--sql 6ebf49a9-5d24-46c0-99ef-ec4d7a2cdfa4
INSERT OR IGNORE INTO artifact_unlocks (id, widget_id, batch, image_index, order_id, price_cents, currency, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`

const QSQLiteListUnlocksByWidget = `--sql 2889461f-2ca5-452f-b0fc-dc5a193f6429
SELECT id, widget_id, batch, image_index, order_id, price_cents, currency, created_at
FROM artifact_unlocks
WHERE widget_id = ?
ORDER BY created_at ASC, image_index ASC;
`
