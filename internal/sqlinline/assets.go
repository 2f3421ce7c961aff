package sqlinline

const QEnsureAssetLedger = `--sql 719b20fc-7143-4956-b3a5-0803ec743eee
create table if not exists asset_ledger (
  id text primary key,
  session_id text not null default '',
  kind text not null,
  storage_key text not null,
  public_url text not null,
  content_type text not null,
  width int not null default 0,
  height int not null default 0,
  bytes bigint not null default 0,
  created_at timestamptz not null default now()
);
`

const QEnsureAssetLedgerIndex = `--sql d867e72d-d3cf-453c-9e85-4e1c8e9dee87
create index if not exists asset_ledger_session_kind_idx
  on asset_ledger (session_id, kind, created_at);
`

const QInsertAsset = `--sql 73947320-6f67-4887-84f9-cb56c2dc3553
insert into asset_ledger (
  id,
  session_id,
  kind,
  storage_key,
  public_url,
  content_type,
  width,
  height,
  bytes,
  created_at
) values (
  $1::text,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::int,
  $8::int,
  $9::bigint,
  $10::timestamptz
)
on conflict (id) do nothing;
`

const QListAssetsBySession = `--sql ea6b2191-ff31-4a2b-b032-a1f981cf66e4
select
  id,
  session_id,
  kind,
  storage_key,
  public_url,
  content_type,
  width,
  height,
  bytes,
  created_at
from asset_ledger
where session_id = $1::text
  and ($2::text = '' or kind = $2::text)
order by created_at asc, id asc;
`

const QCountAssetsByKind = `--sql 28a73cbd-3863-4caa-86b5-e7b1dde5da6a
select kind, count(*)::bigint
from asset_ledger
group by kind;
`
