package sqlinline

const QCreateVideoOperations = `--sql 3c1f9a7e-52d4-4e8b-a0b6-6f2e91d4c7a5
create table if not exists video_operations (
    operation_id       uuid primary key,
    kind               text not null,
    status             text not null,
    prompt             text not null,
    config             jsonb not null default '{}'::jsonb,
    plan               jsonb not null default '[]'::jsonb,
    completed_segments jsonb not null default '[]'::jsonb,
    artifact_path      text,
    error_detail       text,
    created_at         timestamptz not null,
    completed_at       timestamptz,
    archived_at        timestamptz not null default now()
);
`

const QUpsertVideoOperation = `--sql 9e4b27d0-8a61-4f3c-b5d2-1c7e0f3a6b84
insert into video_operations (
    operation_id, kind, status, prompt, config, plan, completed_segments,
    artifact_path, error_detail, created_at, completed_at, archived_at
)
values (
    $1::uuid, $2::text, $3::text, $4::text, $5::jsonb, $6::jsonb, $7::jsonb,
    nullif($8::text, ''), nullif($9::text, ''), $10::timestamptz, $11::timestamptz, now()
)
on conflict (operation_id) do update set
    status = excluded.status,
    completed_segments = excluded.completed_segments,
    artifact_path = excluded.artifact_path,
    error_detail = excluded.error_detail,
    completed_at = excluded.completed_at,
    archived_at = now();
`

const QSelectRecentVideoOperations = `--sql 5a7d3e19-0c42-4b9f-8e6a-2d1f4c8b7e03
select operation_id::text, kind, status, prompt, coalesce(artifact_path, ''), coalesce(error_detail, ''), created_at, completed_at
from video_operations
order by created_at desc
limit $1::int;
`
